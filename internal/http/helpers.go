package http

import (
	"html/template"
	"strconv"
	"time"

	"wallet/internal/core"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"amount": core.FormatAmount,
		"number": core.FormatNumber,
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"poller": func(version uint64) eventsView {
			return eventsView{Version: version, PollInterval: pollInterval}
		},
		"add": func(a, b int) int { return a + b },
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
