package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/variant"
)

// FieldScore is the conservation score field
const FieldScore = "score"

// Conservation tracks
const (
	TrackPhyloP    = "phylop"
	TrackPhastCons = "phastcons"
)

// ucscTracks maps genome and track kind to the UCSC track name
var ucscTracks = map[string]map[string]string{
	"hg38": {TrackPhyloP: "phyloP100way", TrackPhastCons: "phastCons100way"},
	"hg19": {TrackPhyloP: "phyloP100wayAll", TrackPhastCons: "phastCons100way"},
}

// Conservation reads one base of a UCSC conservation track (PhyloP or
// PhastCons) through the UCSC Genome Browser REST API
type Conservation struct {
	name    string
	baseURL string
	genome  string
	track   string
	req     *requester
}

// NewConservation creates a client for kind (TrackPhyloP or TrackPhastCons).
// baseURL is the API root ("https://api.genome.ucsc.edu").
func NewConservation(name, kind, baseURL, genome string, opts Options) *Conservation {
	track := ucscTracks["hg38"][kind]
	if t, ok := ucscTracks[genome][kind]; ok {
		track = t
	}
	return &Conservation{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		genome:  genome,
		track:   track,
		req:     newRequester(name, opts),
	}
}

// Name returns the source name
func (c *Conservation) Name() string { return c.name }

// Track returns the UCSC track queried
func (c *Conservation) Track() string { return c.track }

// Fetch reads the track value at the variant position. Only identifiers with
// a resolved position are applicable.
func (c *Conservation) Fetch(ctx context.Context, id variant.Identifier) model.SourceResult {
	start := time.Now()
	log := c.req.log

	if !id.Resolved() {
		return finish(log, model.NotApplicable(c.name, "genomic position required"), start)
	}
	p := id.Position

	q := url.Values{}
	q.Set("genome", c.genome)
	q.Set("track", c.track)
	q.Set("chrom", p.Chromosome())
	q.Set("start", strconv.FormatInt(p.Pos()-1, 10))
	q.Set("end", strconv.FormatInt(p.Pos(), 10))
	endpoint := c.baseURL + "/getData/track?" + q.Encode()

	body, attempts, failure := c.req.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if failure != nil {
		return finish(log, model.Failed(c.name, failure), start)
	}

	doc, failure := parseBody(body)
	if failure != nil {
		failure.Attempts = attempts
		return finish(log, model.Failed(c.name, failure), start)
	}

	// Wiggle data is keyed by chromosome; some tracks key it by track name
	items := doc.Search(p.Chromosome())
	if _, ok := items.Data().([]interface{}); !ok {
		items = doc.Search(c.track)
	}
	score, ok := number(items.Index(0), "value")
	if !ok {
		return finish(log, model.Failed(c.name, &model.Failure{
			Kind:     model.FailureNotFound,
			Message:  "no " + c.track + " value at " + p.Canonical(),
			Attempts: attempts,
		}), start)
	}

	return finish(log, model.Succeeded(c.name, map[string]model.Value{
		FieldScore: model.NumberValue(score),
	}, attempts), start)
}
