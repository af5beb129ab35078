package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error returns an "error" attribute, or an empty one for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Owner groups an attachment owner as owner.type / owner.id.
func Owner(typ, id string) slog.Attr {
	return slog.Group("owner", slog.String("type", typ), slog.String("id", id))
}

func MediaID(id string) slog.Attr {
	return slog.String("media_id", id)
}

func MediaGroup(group string) slog.Attr {
	return slog.String("group", group)
}

func Path(p string) slog.Attr {
	return slog.String("path", p)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
