package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func adPageServer(t *testing.T, containers int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>`)
		for i := 0; i < containers; i++ {
			fmt.Fprintf(w, `<div class="portlet" style="height:1200px"><iframe src="/outer" width="320" height="270"></iframe></div>`)
		}
		fmt.Fprint(w, `</body></html>`)
	})
	mux.HandleFunc("/outer", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><iframe src="/inner" width="300" height="250"></iframe></body></html>`)
	})
	mux.HandleFunc("/inner", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>`+
			`<a href="/click?url=https%3A%2F%2Fwww.royalroad.com%2Ffiction%2F5"><img class="imagecreative" src="/banner.png" alt="Story"></a>`+
			`<a href="/click?url=%2Fpremium"><img class="imagecreative" src="/house.png" alt="Premium"></a>`+
			`</body></html>`)
	})
	serveBanner := func(c color.NRGBA) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			img := image.NewNRGBA(image.Rect(0, 0, 300, 250))
			for y := 0; y < 250; y++ {
				for x := 0; x < 300; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
			w.Header().Set("Content-Type", "image/png")
			_ = png.Encode(w, img)
		}
	}
	mux.HandleFunc("/banner.png", serveBanner(color.NRGBA{R: 200, A: 255}))
	mux.HandleFunc("/house.png", serveBanner(color.NRGBA{B: 200, A: 255}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func chromeSession(t *testing.T, target string) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	cfg := DefaultConfig()
	cfg.TargetURL = target
	cfg.Headless = true
	cfg.SettleDelay = 300 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_, closePage, err := openChrome(ctx, cfg.withDefaults(), zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	closePage()
	return NewSession(cfg, zap.NewNop())
}

func TestChromeCaptureJoinsBanners(t *testing.T) {
	srv := adPageServer(t, 2)
	s := chromeSession(t, srv.URL+"/home")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	res, err := s.Capture(ctx)
	require.NoError(t, err)
	if res.Fault != nil {
		t.Skipf("capture degraded in this environment: %v", res.Fault)
	}

	assert.Equal(t, 2, res.Containers)
	require.Len(t, res.Ads, 1)
	assert.Equal(t, "https://www.royalroad.com/fiction/5", res.Ads[0].Link)
	assert.Equal(t, "Story", res.Ads[0].Alt)
}

func TestChromeCaptureWithoutContainers(t *testing.T) {
	srv := adPageServer(t, 0)
	s := chromeSession(t, srv.URL+"/home")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	_, err := s.Capture(ctx)
	assert.ErrorIs(t, err, ErrStructuralFailure)
}
