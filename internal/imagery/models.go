package imagery

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

// Kind distinguishes radar subjects from satellite subjects.
type Kind string

const (
	KindRadar     Kind = "radar"
	KindSatellite Kind = "satellite"
)

// Subject is a radar or satellite product known to the catalog.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Remote layout and cache prefixes.
const (
	RadarBackgroundDir = "/anon/gen/radar_transparencies"
	RadarDataDir       = "/anon/gen/radar"
	SatelliteDataDir   = "/anon/gen/gms"

	RadarCachePrefix     = "radar_cache"
	SatelliteCachePrefix = "satellite_cache"

	ArtifactPrefix = "external"

	// GenerationKeyLayout formats timestamps embedded in frame and artifact
	// names. It is fixed width and zero padded, so lexicographic order of
	// names equals chronological order.
	GenerationKeyLayout = "200601021504"
)

var (
	radarFramePattern     = regexp.MustCompile(`^(IDR\d{3})\.T\.(\d{12})\.png$`)
	satelliteFramePattern = regexp.MustCompile(`^(IDE\d{5})\.(\d{12})\.jpg$`)
)

// FramePattern returns the basename pattern for frames of the given kind.
// The first group captures the subject id, the second the timestamp.
func FramePattern(kind Kind) *regexp.Regexp {
	if kind == KindSatellite {
		return satelliteFramePattern
	}
	return radarFramePattern
}

// FrameName is a parsed remote frame basename.
type FrameName struct {
	SubjectID string
	Time      time.Time
	Base      string
}

// ParseFrameName parses a radar or satellite frame basename. Paths are
// reduced to their basename first.
func ParseFrameName(kind Kind, name string) (FrameName, bool) {
	base := path.Base(name)
	m := FramePattern(kind).FindStringSubmatch(base)
	if m == nil {
		return FrameName{}, false
	}
	ts, err := time.ParseInLocation(GenerationKeyLayout, m[2], time.UTC)
	if err != nil {
		return FrameName{}, false
	}
	return FrameName{SubjectID: m[1], Time: ts, Base: base}, true
}

// GenerationKey formats t at minute granularity in UTC.
func GenerationKey(t time.Time) string {
	return t.UTC().Format(GenerationKeyLayout)
}

// ArtifactKey returns the object key of a generated timelapse.
func ArtifactKey(subjectID, generationKey string, kind Kind) string {
	return fmt.Sprintf("%s/%s.%s.%s.gif", ArtifactPrefix, subjectID, generationKey, kind)
}

// BaseCompositeKey returns the object key of a subject's background
// composite. It lives outside the frame cache prefixes.
func BaseCompositeKey(subjectID string) string {
	return subjectID + ".base.png"
}

// CacheKey returns the cache object key for a remote path.
func CacheKey(prefix, remotePath string) string {
	return prefix + "/" + path.Base(remotePath)
}

// Artifact is an encoded timelapse together with where it lives.
type Artifact struct {
	SubjectID     string    `json:"subjectId"`
	Kind          Kind      `json:"kind"`
	Key           string    `json:"key"`
	URL           string    `json:"url"`
	GenerationKey string    `json:"generationKey"`
	Frames        int       `json:"frames"`
	Reused        bool      `json:"reused"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Data          []byte    `json:"-"`
}
