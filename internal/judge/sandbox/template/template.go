// Package template merges user code into a problem's test runner harness.
package template

import (
	"context"
	"strings"

	"codepulse/internal/judge/sandbox/language"
)

// Placeholder is the token a harness uses to mark where user code goes.
const Placeholder = "{user_code}"

// Compose returns tpl with its first placeholder replaced by userCode.
// An empty or blank template leaves userCode unchanged. Later placeholders
// are kept verbatim.
func Compose(userCode, tpl string) string {
	if strings.TrimSpace(tpl) == "" {
		return userCode
	}
	return strings.Replace(tpl, Placeholder, userCode, 1)
}

// Source loads the harness for a problem. A problem without one yields "" and nil.
type Source interface {
	GetTemplate(ctx context.Context, problemID int64, lang language.Language) (string, error)
}
