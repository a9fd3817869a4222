package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/clock"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
)

// CompanyMeta is what the submissions endpoint yields for one company.
type CompanyMeta struct {
	SIC     string
	Filings []model.Filing
}

// submissionsDoc mirrors the slice of the submissions JSON the scanner needs.
// The recent filings come as parallel column arrays.
type submissionsDoc struct {
	SIC         string `json:"sic"`
	CompanyInfo struct {
		SIC string `json:"sic"`
	} `json:"companyInfo"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// indexDoc mirrors the per-filing index.json manifest.
type indexDoc struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"item"`
	} `json:"directory"`
}

// Enumerator lists the candidate documents for a company: filings filtered
// by form type and lookback window, resolved to their constituent documents.
type Enumerator struct {
	session    *Session
	forms      map[string]struct{}
	yearsBack  int
	includePDF bool
	clk        clock.Clock
	logger     *zap.Logger
}

// NewEnumerator builds an Enumerator over the given session.
func NewEnumerator(
	session *Session,
	forms map[string]struct{},
	yearsBack int,
	includePDF bool,
	clk clock.Clock,
	logger *zap.Logger,
) *Enumerator {
	return &Enumerator{
		session:    session,
		forms:      forms,
		yearsBack:  yearsBack,
		includePDF: includePDF,
		clk:        clk,
		logger:     logger,
	}
}

// Company fetches the submissions metadata for cik and returns the SIC code
// plus the filings that pass the form and lookback filters, in the metadata
// order (filing date descending) so repeated runs see the same sequence.
func (e *Enumerator) Company(ctx context.Context, cik string) (CompanyMeta, error) {
	url := e.session.SubmissionsURL(cik)
	resp, err := e.session.Get(ctx, url, "submissions")
	if err != nil {
		return CompanyMeta{}, fmt.Errorf("fetch submissions for %s: %w", cik, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CompanyMeta{}, fmt.Errorf("submissions for %s: status %d", cik, resp.StatusCode)
	}

	var doc submissionsDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return CompanyMeta{}, fmt.Errorf("decode submissions for %s: %w", cik, err)
	}

	sic := doc.SIC
	if sic == "" {
		sic = doc.CompanyInfo.SIC
	}

	minYear := e.clk.Now().Year() - e.yearsBack
	recent := doc.Filings.Recent
	var filings []model.Filing
	for i := range recent.AccessionNumber {
		if i >= len(recent.Form) || i >= len(recent.FilingDate) {
			break
		}
		form := recent.Form[i]
		filed := recent.FilingDate[i]
		if _, ok := e.forms[form]; !ok {
			continue
		}
		if filedYear(filed) < minYear {
			continue
		}
		f := model.Filing{
			Accession: recent.AccessionNumber[i],
			Form:      form,
			Filed:     filed,
		}
		if i < len(recent.PrimaryDocument) {
			f.PrimaryDoc = recent.PrimaryDocument[i]
		}
		filings = append(filings, f)
	}
	return CompanyMeta{SIC: sic, Filings: filings}, nil
}

// ResolveDocuments looks up the filing's index and returns its scannable
// documents, primary document first. A malformed or missing index is an
// error for this filing only; the caller skips it and continues.
func (e *Enumerator) ResolveDocuments(ctx context.Context, cik string, f model.Filing) ([]model.Document, error) {
	cikInt, err := CIKInt(cik)
	if err != nil {
		return nil, err
	}
	folder := AccessionFolder(f.Accession)

	resp, err := e.session.Get(ctx, e.session.IndexURL(cikInt, folder), "index")
	if err != nil {
		return nil, fmt.Errorf("fetch index for %s: %w", f.Accession, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index for %s: status %d", f.Accession, resp.StatusCode)
	}

	var idx indexDoc
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decode index for %s: %w", f.Accession, err)
	}

	primary := strings.ToLower(f.PrimaryDoc)
	var docs []model.Document
	if primary != "" {
		for _, item := range idx.Directory.Item {
			if strings.ToLower(item.Name) == primary && e.scannable(item.Name) {
				docs = append(docs, model.Document{
					Filing:  f,
					Name:    item.Name,
					URL:     e.session.DocumentURL(cikInt, folder, item.Name),
					Primary: true,
				})
				break
			}
		}
	}
	for _, item := range idx.Directory.Item {
		name := strings.ToLower(item.Name)
		if name == "" || strings.Contains(name, "index") {
			continue
		}
		if primary != "" && name == primary {
			continue
		}
		if !e.scannable(item.Name) {
			continue
		}
		docs = append(docs, model.Document{
			Filing: f,
			Name:   item.Name,
			URL:    e.session.DocumentURL(cikInt, folder, item.Name),
		})
	}
	return docs, nil
}

// MasterTextRef returns the master-text pseudo-document for f.
func (e *Enumerator) MasterTextRef(cik string, f model.Filing) (model.Document, error) {
	cikInt, err := CIKInt(cik)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{
		Filing: f,
		Name:   f.Accession + ".txt",
		URL:    e.session.MasterTextURL(cikInt, f.Accession),
	}, nil
}

func (e *Enumerator) scannable(name string) bool {
	n := strings.ToLower(name)
	if strings.HasSuffix(n, ".htm") || strings.HasSuffix(n, ".html") || strings.HasSuffix(n, ".txt") {
		return true
	}
	return e.includePDF && strings.HasSuffix(n, ".pdf")
}

func filedYear(filed string) int {
	if len(filed) < 4 {
		return 0
	}
	y, err := strconv.Atoi(filed[:4])
	if err != nil {
		return 0
	}
	return y
}
