package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns an upper-cased short ID with a prefix,
// capped at 14 characters, e.g. `INV-XYZ12A8Q9`.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 14 - len(prefix)
	if availableLen <= 0 {
		return ""
	}
	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(prefix + id)
}

const (
	UUID_PREFIX_EVENT              = "event"
	UUID_PREFIX_SCHEDULED_CHANGE   = "sched"
	UUID_PREFIX_INVOICE            = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM  = "inv_line"
	UUID_PREFIX_PAYMENT            = "pay"
	UUID_PREFIX_PAYMENT_RETRY      = "retry"
	UUID_PREFIX_APPLIED_COUPON     = "cpn_app"
	UUID_PREFIX_PLAN_OVERRIDE      = "override"
	UUID_PREFIX_WALLET             = "wallet"
	UUID_PREFIX_WALLET_TRANSACTION = "wtxn"
	UUID_PREFIX_WEBHOOK_EVENT      = "webhook"
	UUID_PREFIX_WEBHOOK_LOG        = "whlog"
	SHORT_ID_PREFIX_INVOICE_NUMBER = "INV-"
)
