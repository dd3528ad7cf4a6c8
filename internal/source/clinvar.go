package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/variant"
)

// ClinVar field names
const (
	FieldClinicalSignificance = "clinical_significance"
	FieldTitle                = "title"
	FieldUID                  = "uid"
)

// ClinVar looks variants up in NCBI ClinVar through E-utilities: an esearch
// resolves the identifier to a record id, an esummary reads the record.
type ClinVar struct {
	name    string
	baseURL string
	genome  string
	apiKey  string
	req     *requester
}

// NewClinVar creates a ClinVar client. baseURL is the E-utilities root
// ("https://eutils.ncbi.nlm.nih.gov/entrez/eutils").
func NewClinVar(name, baseURL, genome, apiKey string, opts Options) *ClinVar {
	return &ClinVar{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		genome:  genome,
		apiKey:  apiKey,
		req:     newRequester(name, opts),
	}
}

// Name returns the source name
func (c *ClinVar) Name() string { return c.name }

// Fetch annotates id with the clinical significance of its first ClinVar record
func (c *ClinVar) Fetch(ctx context.Context, id variant.Identifier) model.SourceResult {
	start := time.Now()
	log := c.req.log

	term, ok := c.term(id)
	if !ok {
		return finish(log, model.NotApplicable(c.name, errNotApplicable.Error()), start)
	}

	search := c.params()
	search.Set("term", term)
	search.Set("retmax", "5")

	body, searchAttempts, failure := c.req.do(ctx, c.get("/esearch.fcgi", search))
	if failure != nil {
		return finish(log, model.Failed(c.name, failure), start)
	}
	doc, failure := parseBody(body)
	if failure != nil {
		failure.Attempts = searchAttempts
		return finish(log, model.Failed(c.name, failure), start)
	}

	ids := stringsAt(doc, "esearchresult.idlist")
	if len(ids) == 0 {
		return finish(log, model.Failed(c.name, &model.Failure{
			Kind:     model.FailureNotFound,
			Message:  "no ClinVar record for " + term,
			Attempts: searchAttempts,
		}), start)
	}
	uid := ids[0]

	summary := c.params()
	summary.Set("id", uid)

	body, summaryAttempts, failure := c.req.do(ctx, c.get("/esummary.fcgi", summary))
	attempts := searchAttempts + summaryAttempts
	if failure != nil {
		failure.Attempts = attempts
		return finish(log, model.Failed(c.name, failure), start)
	}
	doc, failure = parseBody(body)
	if failure != nil {
		failure.Attempts = attempts
		return finish(log, model.Failed(c.name, failure), start)
	}

	record := doc.Search("result", uid)
	if emptyRecord(record) {
		return finish(log, model.Failed(c.name, &model.Failure{
			Kind:     model.FailureNotFound,
			Message:  "empty ClinVar summary for " + uid,
			Attempts: attempts,
		}), start)
	}

	fields := map[string]model.Value{FieldUID: model.StringValue(uid)}
	sig, ok := str(record, "germline_classification.description")
	if !ok {
		sig, ok = str(record, "clinical_significance.description")
	}
	if ok {
		fields[FieldClinicalSignificance] = model.StringValue(sig)
	}
	if title, ok := str(record, "title"); ok {
		fields[FieldTitle] = model.StringValue(title)
	}

	return finish(log, model.Succeeded(c.name, fields, attempts), start)
}

// term builds the esearch term: identifiers ClinVar indexes are searched
// verbatim, resolved positions by chromosome and assembly coordinate
func (c *ClinVar) term(id variant.Identifier) (string, bool) {
	switch {
	case id.Kind == variant.KindRsID, id.Kind == variant.KindTranscript:
		return id.Raw, true
	case id.Resolved():
		field := "chrpos38"
		if c.genome == "hg19" {
			field = "chrpos37"
		}
		p := id.Position
		return fmt.Sprintf("%s[chr] AND %d[%s]", p.Bare(), p.Pos(), field), true
	default:
		return "", false
	}
}

func (c *ClinVar) params() url.Values {
	q := url.Values{}
	q.Set("db", "clinvar")
	q.Set("retmode", "json")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return q
}

func (c *ClinVar) get(path string, q url.Values) buildFunc {
	endpoint := c.baseURL + path + "?" + q.Encode()
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}
}
