package highway

import "github.com/sirupsen/logrus"

// log 内置highway环境的日志记录器
var log = logrus.WithField("module", "highway")
