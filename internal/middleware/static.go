package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#0f172a"/><path d="M100 150c-4-3.5-40-30-40-58a24 24 0 0 1 40-18 24 24 0 0 1 40 18c0 28-36 54.5-40 58z" fill="#6366f1"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#94a3b8">LIVERAISE</text></svg>`

// StaticFileServer serves campaign logo and banner assets, falling back to
// a placeholder graphic when the requested file is missing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
