package pubfeed

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// MediaInfo describes a featured image as advertised in an entry.
type MediaInfo struct {
	URL    string
	Type   string
	Length int64
	Width  int
	Height int
}

// MediaInspector resolves featured images that are served from a local
// uploads directory, so enclosures can carry the real byte size and pixel
// dimensions. Images it cannot find fall back to EstimateImageSize.
type MediaInspector struct {
	Origin    string // site origin; URLs on other hosts are never inspected
	Dir       string // local directory holding uploaded media
	URLPrefix string // URL path under which Dir is served, e.g. "/uploads"
}

// Inspect returns what the feed should advertise for imageURL. The returned
// URL is always absolute.
func (m *MediaInspector) Inspect(imageURL string) MediaInfo {
	info := MediaInfo{
		URL:    BuildURL(m.origin(), imageURL),
		Type:   ImageMIMEType(imageURL),
		Length: EstimateImageSize(imageURL),
	}
	p, ok := m.localPath(imageURL)
	if !ok {
		return info
	}
	st, err := os.Stat(p)
	if err != nil || st.IsDir() || st.Size() <= 0 {
		return info
	}
	info.Length = st.Size()
	if f, err := os.Open(p); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			info.Width, info.Height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return info
}

func (m *MediaInspector) origin() string {
	if m == nil {
		return ""
	}
	return m.Origin
}

// localPath maps imageURL onto a file under Dir. It refuses anything that
// would escape Dir.
func (m *MediaInspector) localPath(imageURL string) (string, bool) {
	if m == nil || m.Dir == "" {
		return "", false
	}
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", false
	}
	if u.Host != "" {
		site, err := url.Parse(m.Origin)
		if err != nil || !strings.EqualFold(site.Host, u.Host) {
			return "", false
		}
	}
	prefix := "/" + strings.Trim(m.URLPrefix, "/")
	if prefix != "/" {
		prefix += "/"
	}
	urlPath := "/" + strings.TrimLeft(u.Path, "/")
	if !strings.HasPrefix(urlPath, prefix) {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(urlPath, prefix))
	clean := filepath.Clean(filepath.Join(m.Dir, rel))
	base := filepath.Clean(m.Dir)
	if clean == base || !strings.HasPrefix(clean, base+string(filepath.Separator)) {
		return "", false
	}
	return clean, true
}
