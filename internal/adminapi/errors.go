package adminapi

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// googleAPIErrorReason extracts the first structured error reason from a
// googleapi.Error (e.g. "accessNotConfigured", "notAuthorized"), or
// returns "" if err isn't a googleapi.Error or carries no reason —
// mirroring the original Cloud SQL connector's addExceptionContext,
// which only adds remediation text when GoogleJsonResponseException
// carries a non-empty Errors list.
func googleAPIErrorReason(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return ""
	}
	if len(gerr.Errors) == 0 {
		return ""
	}
	return gerr.Errors[0].Reason
}

// parsePEMCertificate decodes a single PEM-encoded X.509 certificate.
func parsePEMCertificate(pemStr string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing X.509 certificate: %w", err)
	}
	return cert, nil
}
