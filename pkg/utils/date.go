package utils

import (
	"log"
	"time"
)

// TimeNowCST returns the current time in the exchange timezone (Asia/Shanghai).
func TimeNowCST() time.Time {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return time.Now().In(loc)
}

// FormatTradeDate renders t as YYYYMMDD.
func FormatTradeDate(t time.Time) string {
	return t.Format("20060102")
}

// ParseTradeDate parses a YYYYMMDD string.
func ParseTradeDate(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}
