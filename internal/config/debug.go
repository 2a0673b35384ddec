package config

import "os"

func IsDebug() bool {
	return os.Getenv("FALTABOT_DEBUG") == "1"
}
