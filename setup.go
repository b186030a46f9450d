package htmlimage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// noBackgroundsCSS suppresses CSS background images before any are fetched.
const noBackgroundsCSS = `*, *::before, *::after { background-image: none !important; }`

// bootstrapScript runs in every new document before the parser. It inserts
// the given style text as the first child of the root element, ahead of all
// author stylesheets, and optionally strips content image sources as
// elements are parsed.
const bootstrapScript = `(() => {
  const css = %s;
  const stripImages = %t;
  const strip = (el) => {
    if (el.nodeType !== 1) return;
    const targets = el.matches('img, source, input[type=image], video') ? [el] : [];
    targets.push(...el.querySelectorAll('img, source, input[type=image], video'));
    for (const t of targets) {
      t.removeAttribute('src');
      t.removeAttribute('srcset');
      t.removeAttribute('poster');
    }
  };
  let installed = false;
  const install = () => {
    const root = document.documentElement;
    if (installed || !root || !css) return;
    const style = document.createElement('style');
    style.setAttribute('data-htmlimage', '');
    style.textContent = css;
    root.insertBefore(style, root.firstChild);
    installed = true;
  };
  new MutationObserver((records) => {
    install();
    if (!stripImages) return;
    for (const r of records) r.addedNodes.forEach(strip);
  }).observe(document, { childList: true, subtree: true });
  install();
})();`

// imagePolicy translates the two image toggles into browser configuration.
type imagePolicy struct {
	content    bool
	background bool
}

func newImagePolicy(s RenderSettings) imagePolicy {
	return imagePolicy{content: s.LoadImages, background: s.LoadBackgroundImages}
}

// blockRequests reports whether image requests should fail at the network
// layer. That is only safe when no image of either kind is wanted.
func (p imagePolicy) blockRequests() bool {
	return !p.content && !p.background
}

// script returns the bootstrap script for the policy and user stylesheet,
// or "" when nothing needs injecting.
func (p imagePolicy) script(userCSS string) string {
	var css []string
	if userCSS != "" {
		css = append(css, userCSS)
	}
	if !p.background {
		css = append(css, noBackgroundsCSS)
	}
	if len(css) == 0 && p.content {
		return ""
	}
	// Marshalling a string cannot fail.
	quoted, _ := json.Marshal(strings.Join(css, "\n"))
	return fmt.Sprintf(bootstrapScript, quoted, !p.content)
}

// prepareTab configures a fresh tab before navigation: viewport, media
// type, font fallbacks for vector output and the image policy.
func prepareTab(job renderJob, policy imagePolicy) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		s := job.settings
		if err := emulation.SetDeviceMetricsOverride(int64(s.Width), int64(s.Height), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("setting viewport %dx%d: %w", s.Width, s.Height, err)
		}
		if err := emulation.SetEmulatedMedia().WithMedia(s.MediaType).Do(ctx); err != nil {
			return fmt.Errorf("setting media type %q: %w", s.MediaType, err)
		}
		if job.format == Vector {
			if err := page.SetFontFamilies(job.fonts.families()).Do(ctx); err != nil {
				return fmt.Errorf("setting font families: %w", err)
			}
		}
		if src := policy.script(job.userCSS); src != "" {
			if _, err := page.AddScriptToEvaluateOnNewDocument(src).Do(ctx); err != nil {
				return fmt.Errorf("installing bootstrap script: %w", err)
			}
		}
		if policy.blockRequests() {
			patterns := []*fetch.RequestPattern{{URLPattern: "*", ResourceType: network.ResourceTypeImage}}
			if err := fetch.Enable().WithPatterns(patterns).Do(ctx); err != nil {
				return fmt.Errorf("enabling image interception: %w", err)
			}
		}
		return nil
	})
}
