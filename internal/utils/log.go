// Package utils
package utils

import (
	"log"
	"os"
	"sync"
)

var (
	logger *log.Logger
	once   sync.Once
)

func GetLogger() *log.Logger {
	once.Do(func() {
		file, err := os.OpenFile("nse-backtest.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		logger = log.New(file, "NSE Backtest: ", log.LstdFlags)
	})
	return logger
}
