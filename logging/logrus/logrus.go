// Package logrus adapts a *logrus.Entry to logging.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/sharedstate/logging"
)

type Logger struct{ E *logrus.Entry }

var _ logging.Logger = Logger{}

func (l Logger) Debug(msg string, f logging.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f logging.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f logging.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f logging.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
