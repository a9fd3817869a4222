package edgar

import (
	"fmt"
	"strconv"
	"strings"
)

// SubmissionsURL addresses the metadata-by-company endpoint.
func (s *Session) SubmissionsURL(cik string) string {
	return fmt.Sprintf("%s/submissions/CIK%s.json", strings.TrimRight(s.cfg.DataBaseURL, "/"), cik)
}

// IndexURL addresses the filing-index-by-accession endpoint.
func (s *Session) IndexURL(cikInt int64, folder string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s/index.json",
		strings.TrimRight(s.cfg.ArchiveBaseURL, "/"), cikInt, folder)
}

// DocumentURL addresses one document inside a filing folder.
func (s *Session) DocumentURL(cikInt int64, folder, name string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s",
		strings.TrimRight(s.cfg.ArchiveBaseURL, "/"), cikInt, folder, name)
}

// MasterTextURL addresses the filing's master text file by dashed accession.
func (s *Session) MasterTextURL(cikInt int64, accession string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%d/%s.txt",
		strings.TrimRight(s.cfg.ArchiveBaseURL, "/"), cikInt, accession)
}

// CIKInt converts the canonical zero-padded CIK to the unpadded integer the
// archive paths use.
func CIKInt(cik string) (int64, error) {
	n, err := strconv.ParseInt(cik, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cik %q: %w", cik, err)
	}
	return n, nil
}

// AccessionFolder strips the dashes from an accession number, yielding the
// archive folder name.
func AccessionFolder(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}
