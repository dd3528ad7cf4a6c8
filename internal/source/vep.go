package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jeffail/gabs"

	"github.com/ppiankov/varscore/internal/model"
	"github.com/ppiankov/varscore/internal/variant"
)

// Ensembl VEP field names
const (
	FieldConsequenceTerms      = "consequence_terms"
	FieldGeneSymbol            = "gene_symbol"
	FieldMostSevereConsequence = "most_severe_consequence"
)

// EnsemblVEP queries the Ensembl Variant Effect Predictor REST API
type EnsemblVEP struct {
	name    string
	baseURL string
	req     *requester
}

// NewEnsemblVEP creates a VEP client. baseURL is the REST root
// ("https://rest.ensembl.org").
func NewEnsemblVEP(name, baseURL string, opts Options) *EnsemblVEP {
	return &EnsemblVEP{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		req:     newRequester(name, opts),
	}
}

// Name returns the source name
func (e *EnsemblVEP) Name() string { return e.name }

// Fetch annotates id using the id, region or hgvs endpoint depending on the
// identifier form
func (e *EnsemblVEP) Fetch(ctx context.Context, id variant.Identifier) model.SourceResult {
	start := time.Now()
	log := e.req.log

	build, err := e.request(id)
	if err != nil {
		return finish(log, model.NotApplicable(e.name, err.Error()), start)
	}

	body, attempts, failure := e.req.do(ctx, build)
	if failure != nil {
		return finish(log, model.Failed(e.name, failure), start)
	}

	doc, failure := parseBody(body)
	if failure != nil {
		failure.Attempts = attempts
		return finish(log, model.Failed(e.name, failure), start)
	}

	// VEP answers with one entry per input; a single input is sent
	first := doc.Index(0)
	if emptyRecord(first) {
		return finish(log, model.Failed(e.name, &model.Failure{
			Kind:     model.FailureNotFound,
			Message:  "no consequences for " + id.Key(),
			Attempts: attempts,
		}), start)
	}

	return finish(log, model.Succeeded(e.name, e.extract(first), attempts), start)
}

func (e *EnsemblVEP) request(id variant.Identifier) (buildFunc, error) {
	var path string
	switch {
	case id.Kind == variant.KindRsID:
		path = "/vep/human/id/" + url.PathEscape(id.Raw)
	case id.Resolved():
		p := id.Position
		path = fmt.Sprintf("/vep/human/region/%s:%d-%d:1/%s", p.Bare(), p.Pos(), p.End(), p.Alt())
	case id.Kind == variant.KindTranscript:
		path = "/vep/human/hgvs/" + url.PathEscape(id.Raw)
	default:
		return nil, errNotApplicable
	}

	endpoint := e.baseURL + path + "?content-type=application/json"
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, nil
}

// extract collects the union of consequence terms over all transcripts, the
// first gene symbol and the most severe consequence
func (e *EnsemblVEP) extract(doc *gabs.Container) map[string]model.Value {
	fields := make(map[string]model.Value)

	var terms []string
	seen := make(map[string]bool)
	gene := ""

	transcripts, _ := doc.Path("transcript_consequences").Children()
	for _, tc := range transcripts {
		for _, t := range stringsAt(tc, "consequence_terms") {
			if !seen[t] {
				seen[t] = true
				terms = append(terms, t)
			}
		}
		if gene == "" {
			gene, _ = str(tc, "gene_symbol")
		}
	}

	severe, hasSevere := str(doc, "most_severe_consequence")
	if len(terms) == 0 && hasSevere {
		terms = []string{severe}
	}

	if len(terms) > 0 {
		fields[FieldConsequenceTerms] = model.StringsValue(terms)
	}
	if gene != "" {
		fields[FieldGeneSymbol] = model.StringValue(gene)
	}
	if hasSevere {
		fields[FieldMostSevereConsequence] = model.StringValue(severe)
	}
	return fields
}
