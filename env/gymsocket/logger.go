package gymsocket

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "gymsocket")
