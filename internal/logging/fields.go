package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// QueryFields 提供查询键/资源/状态字段，供查询协调器的日志复用。
func QueryFields(action, key, resource, status string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"key":      key,
		"resource": resource,
		"status":   status,
	}
}

// MutationFields 提供 mutation 名称与状态字段。
func MutationFields(name, status string) logrus.Fields {
	return logrus.Fields{
		"action":   "mutation",
		"mutation": name,
		"status":   status,
	}
}

// RequestFields 描述一次视图层 HTTP 请求。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "request",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
