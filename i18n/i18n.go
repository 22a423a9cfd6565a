// Package i18n localizes resxkit's own user-facing messages.
//
// It is a thin wrapper around gotext: translations live in PO files under
// locales/, are embedded into the binary, and are selected at startup from
// the standard locale environment variables. When no translation exists,
// T returns its argument unchanged, so callers never special-case a
// missing locale.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales embeds the PO translation catalogs.
// Layout: locales/{lang}/LC_MESSAGES/resxkit.po
//
//go:embed all:locales
var locales embed.FS

const domain = "resxkit"

var locale *gotext.Locale

// Init loads the translation catalog. An empty lang auto-detects from
// LANGUAGE, LC_ALL, LC_MESSAGES, LANG (GNU gettext order). Call once at
// program startup.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	locale = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	locale.AddDomain(domain)
	locale.SetDomain(domain)
}

// T translates a message, returning it unchanged when no translation is
// available or Init was never called.
func T(msgid string) string {
	if locale == nil {
		return msgid
	}
	return locale.Get(msgid)
}

// N translates a message with plural forms for count n.
func N(singular, plural string, n int) string {
	if locale == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return locale.GetN(singular, plural, n)
}

// detectLanguage picks the user's language from the environment,
// LANGUAGE > LC_ALL > LC_MESSAGES > LANG, like GNU gettext.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
