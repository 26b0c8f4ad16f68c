package spaserve

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/matthewmueller/httpbuf"
)

// Middleware that rewrites HTML responses to include the live reload script.
// Other responses pass through untouched. It also serves the reloader's own
// endpoints so the script has something to poll.
func (r *Reloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.handles(req) {
			r.ServeHTTP(w, req)
			return
		}
		// Changes that land while the page renders must still reload it
		version := r.version.Current()
		// Wrap the response writer to capture the response body
		rw := httpbuf.Wrap(w)
		defer rw.Flush()
		next.ServeHTTP(rw, req)
		if !isHTML(rw.Header().Get("Content-Type")) || req.Method == http.MethodHead {
			return
		}
		if !utf8.Valid(rw.Body) {
			r.log.Warn("spaserve: not injecting into non-utf8 html", "path", req.URL.Path)
			return
		}
		body, rewrote := rewrite(rw.Body, r.script(version))
		if !rewrote {
			return
		}
		rw.Body = body
		rw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		// The body no longer matches the file on disk
		rw.Header().Del("Last-Modified")
		rw.Header().Del("ETag")
	})
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}

// scriptMarker identifies pages that already carry the script
const scriptMarker = "data-livereload"

// Client-side script that polls the health check and reloads the page once
// the server's version moves past the version the page was rendered with.
const liveScript = `(function() {
	var version = %[1]d
	function poll() {
		fetch(%[2]q + "?v=" + version + "&t=" + Date.now(), { cache: "no-store" })
			.then(function(res) { return res.json() })
			.then(function(body) {
				if (body.reload) {
					console.debug("livereload: reloading")
					window.location.reload()
					return
				}
				setTimeout(poll, %[3]d)
			})
			.catch(function() { setTimeout(poll, %[3]d) })
	}
	setTimeout(poll, %[3]d)
})()
`

func (r *Reloader) pollScript(version uint64, healthURL string) string {
	return fmt.Sprintf(liveScript, version, healthURL, r.PollInterval.Milliseconds())
}

// script is attached to the end of the body
func (r *Reloader) script(version uint64) string {
	return "\n<script type=\"text/javascript\" " + scriptMarker + ">\n" + r.pollScript(version, r.HealthPath) + "</script>\n"
}

// rewrite inserts the script before the closing body tag, or at the end of the
// document when there isn't one. Documents that already have the script are
// left alone.
func rewrite(data []byte, script string) ([]byte, bool) {
	if bytes.Contains(data, []byte(scriptMarker)) {
		return data, false
	}
	index := lastIndexFold(data, "</body")
	if index < 0 {
		index = len(data)
	}
	out := make([]byte, 0, len(data)+len(script))
	out = append(out, data[:index]...)
	out = append(out, script...)
	out = append(out, data[index:]...)
	return out, true
}

// lastIndexFold is bytes.LastIndex with ASCII case folding. bytes.ToLower
// can change the length of non-ASCII text, which would throw off the index.
func lastIndexFold(data []byte, needle string) int {
	for i := len(data) - len(needle); i >= 0; i-- {
		match := true
		for j := 0; j < len(needle); j++ {
			if lower(data[i+j]) != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
