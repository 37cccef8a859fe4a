package handlers

import (
	"embed"
	"net/http"
	"strconv"
)

//go:embed static/index.html static/login.html
var static embed.FS

// RootHandler redirects "/" to the landing page; every other unmatched path
// is not found.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
}

// IndexHandler serves the landing page with the live stream.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	servePage(w, "static/index.html")
}

// LoginPageHandler serves the password form.
func LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	servePage(w, "static/login.html")
}

func servePage(w http.ResponseWriter, name string) {
	content, err := static.ReadFile(name)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}
