package web

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

var forbiddenHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// checkFetchURL rejects anything but public http(s) targets. It returns the
// status and message to answer with, or 0 when the URL may be fetched.
func checkFetchURL(u *url.URL) (int, string) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return http.StatusBadRequest, "Only HTTP/HTTPS URLs are allowed"
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return http.StatusBadRequest, "Invalid URL"
	}
	if forbiddenHosts[host] {
		return http.StatusForbidden, "Access to localhost is forbidden"
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return 0, ""
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsUnspecified() {
		return http.StatusForbidden, "Access to localhost is forbidden"
	}
	if addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return http.StatusForbidden, "Access to private IP ranges is forbidden"
	}
	return 0, ""
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "You must specify a URL", http.StatusInternalServerError)
		return
	}
	kind := r.URL.Query().Get("type")
	switch kind {
	case "":
		kind = "text"
	case "blob", "json", "text":
	default:
		http.Error(w, "type must be blob, json or text", http.StatusBadRequest)
		return
	}

	target, err := url.Parse(raw)
	if err != nil || !target.IsAbs() {
		http.Error(w, "Invalid URL", http.StatusBadRequest)
		return
	}
	if status, msg := s.checkFetch(target); status != 0 {
		http.Error(w, msg, status)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, "Invalid URL", http.StatusBadRequest)
		return
	}
	resp, err := s.fetcher.Do(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Unable to initiate fetch for %s. Error: %s",
			html.EscapeString(raw), html.EscapeString(err.Error())), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		http.Error(w, fmt.Sprintf("Unable to fetch %s. Status: %d, %s",
			html.EscapeString(raw), resp.StatusCode, html.EscapeString(http.StatusText(resp.StatusCode))), resp.StatusCode)
		return
	}

	for k, vs := range resp.Header {
		if k == "Content-Length" || k == "Content-Encoding" || k == "Transfer-Encoding" {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if kind == "json" {
		var body any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			w.Header().Del("Content-Type")
			http.Error(w, fmt.Sprintf("Unable to parse JSON from %s", html.EscapeString(raw)), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	w.WriteHeader(http.StatusOK)
	io.Copy(w, resp.Body)
}
