package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// personaScript returns the script evaluated on every new document so the
// JS-visible identity matches the Chrome-on-Linux persona. Travel sites gate
// automated traffic aggressively; a webdriver flag or a platform mismatch is
// enough to get a session served a challenge page.
func personaScript(p schemas.Persona) string {
	return fmt.Sprintf(`(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'platform', { get: () => %q });
	Object.defineProperty(navigator, 'userAgent', { get: () => %q });
	Object.defineProperty(navigator, 'languages', { get: () => %s });
	window.chrome = window.chrome || { runtime: {} };
})();`, p.Platform, p.UserAgent, jsStringArray(p.Languages))
}

func jsStringArray(items []string) string {
	out := "["
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", s)
	}
	return out + "]"
}

// applyStealth configures the tab to present the persona: user agent and
// platform at the protocol level, viewport metrics, and the new-document
// script for everything JS can probe.
func applyStealth(p schemas.Persona) chromedp.Tasks {
	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithPlatform(p.Platform).
			WithAcceptLanguage(acceptLanguage(p.Languages)),
		emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1.0, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(personaScript(p)).Do(ctx)
			return err
		}),
	}
}

func acceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return "en-US,en"
	}
	out := ""
	for i, l := range languages {
		if i > 0 {
			out += ","
		}
		out += l
	}
	return out
}
