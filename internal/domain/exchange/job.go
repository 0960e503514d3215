package exchange

import (
	"strings"
	"time"

	"github.com/autoparts/backend/internal/domain/shared"
)

// DocType identifies the exchange document family as declared by the ERP
// client in the "type" query parameter.
type DocType string

const (
	DocTypeCatalog DocType = "catalog"
	DocTypeSale    DocType = "sale"
)

// IsValid checks if the doc type is one the exchange protocol understands
func (t DocType) IsValid() bool {
	return t == DocTypeCatalog || t == DocTypeSale
}

// String returns the string representation of DocType
func (t DocType) String() string {
	return string(t)
}

// JobType is the closed set of queued work kinds. Routing keys and queue
// names are derived from it, so an unsupported kind is caught at the single
// ResolveJobType entry point instead of deep inside a consumer.
type JobType string

const (
	JobCatalogImport          JobType = "catalog-import"
	JobOffersImport           JobType = "offers-import"
	JobOrdersApply            JobType = "orders-apply"
	JobOrdersExport           JobType = "orders-export"
	JobOrdersIntegrationPush  JobType = "orders-integration-push"
	JobReturnsIntegrationPush JobType = "returns-integration-push"
)

// AllJobTypes returns every job type with a dedicated queue
func AllJobTypes() []JobType {
	return []JobType{
		JobCatalogImport,
		JobOffersImport,
		JobOrdersApply,
		JobOrdersExport,
		JobOrdersIntegrationPush,
		JobReturnsIntegrationPush,
	}
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// ErrUnsupportedDocType is returned when a finalized upload cannot be
// classified into a job type.
var ErrUnsupportedDocType = shared.NewDomainError("UNSUPPORTED_DOC_TYPE", "Unsupported exchange document type")

// ResolveJobType classifies a finalized upload into the queue it belongs to.
// Catalog documents whose filename mentions offers carry prices and stocks
// and go to the offers queue; every other catalog document is a full catalog
// import; sale documents are order changes.
func ResolveJobType(docType DocType, filename string) (JobType, error) {
	switch docType {
	case DocTypeCatalog:
		if strings.Contains(strings.ToLower(filename), "offer") {
			return JobOffersImport, nil
		}
		return JobCatalogImport, nil
	case DocTypeSale:
		return JobOrdersApply, nil
	}
	return "", ErrUnsupportedDocType
}

// Job is one unit of queued exchange work. It is immutable once published:
// consumers read the staged document at ObjectKey and correlate every log
// line and idempotency check through RequestID.
type Job struct {
	Type      JobType   `json:"type"`
	Filename  string    `json:"filename"`
	ObjectKey string    `json:"object_key"`
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob creates a new exchange job
func NewJob(jobType JobType, filename, objectKey, requestID string) Job {
	return Job{
		Type:      jobType,
		Filename:  filename,
		ObjectKey: objectKey,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}
