package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/variant"
)

// MyVariant field names
const (
	FieldCADDPhred           = "cadd.phred"
	FieldClinVarSignificance = "clinvar.rcv.clinical_significance"
	FieldGnomADExomeAF       = "gnomad_exome.af"
	FieldGnomADGenomeAF      = "gnomad_genome.af"
)

var myVariantFields = strings.Join([]string{
	FieldCADDPhred,
	FieldClinVarSignificance,
	FieldGnomADExomeAF,
	FieldGnomADGenomeAF,
}, ",")

// MyVariant queries MyVariant.info for CADD, ClinVar and gnomAD annotations
type MyVariant struct {
	name    string
	baseURL string
	genome  string
	req     *requester
}

// NewMyVariant creates a MyVariant.info client. baseURL is the API root
// ("https://myvariant.info/v1").
func NewMyVariant(name, baseURL, genome string, opts Options) *MyVariant {
	return &MyVariant{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		genome:  genome,
		req:     newRequester(name, opts),
	}
}

// Name returns the source name
func (m *MyVariant) Name() string { return m.name }

// Fetch annotates id. rsIDs go through the query endpoint, resolved positions
// through the variant endpoint; other forms are not applicable.
func (m *MyVariant) Fetch(ctx context.Context, id variant.Identifier) model.SourceResult {
	start := time.Now()
	log := m.req.log

	build, err := m.request(id)
	if err != nil {
		return finish(log, model.NotApplicable(m.name, err.Error()), start)
	}

	body, attempts, failure := m.req.do(ctx, build)
	if failure != nil {
		return finish(log, model.Failed(m.name, failure), start)
	}

	doc, failure := parseBody(body)
	if failure != nil {
		failure.Attempts = attempts
		return finish(log, model.Failed(m.name, failure), start)
	}

	if id.Kind == variant.KindRsID {
		doc = doc.Path("hits").Index(0)
	}
	if emptyRecord(doc) {
		return finish(log, model.Failed(m.name, &model.Failure{
			Kind:     model.FailureNotFound,
			Message:  "no annotation for " + id.Key(),
			Attempts: attempts,
		}), start)
	}

	return finish(log, model.Succeeded(m.name, m.extract(doc), attempts), start)
}

func (m *MyVariant) request(id variant.Identifier) (buildFunc, error) {
	q := url.Values{}
	q.Set("fields", myVariantFields)
	if m.genome != "" {
		q.Set("assembly", m.genome)
	}

	var endpoint string
	switch {
	case id.Kind == variant.KindRsID:
		q.Set("q", "dbsnp.rsid:"+id.Raw)
		q.Set("size", "1")
		endpoint = m.baseURL + "/query?" + q.Encode()
	case id.Resolved():
		endpoint = m.baseURL + "/variant/" + url.PathEscape(id.Position.Canonical()) + "?" + q.Encode()
	default:
		return nil, errNotApplicable
	}

	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, nil
}

// extract keeps the scoring and display fields present in doc
func (m *MyVariant) extract(doc *gabs.Container) map[string]model.Value {
	fields := make(map[string]model.Value)

	if v, ok := number(doc, FieldCADDPhred); ok {
		fields[FieldCADDPhred] = model.NumberValue(v)
	}
	if sigs := stringsAt(doc, FieldClinVarSignificance); len(sigs) > 0 {
		fields[FieldClinVarSignificance] = model.StringsValue(sigs)
	}
	for _, f := range []string{FieldGnomADExomeAF, FieldGnomADGenomeAF} {
		if v, ok := number(doc, f); ok {
			fields[f] = model.NumberValue(v)
		}
	}
	return fields
}
