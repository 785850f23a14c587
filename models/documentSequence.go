package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Jorge523757/DIGITSOFT/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentKind string

const (
	DocumentKindSale         DocumentKind = "sale"
	DocumentKindInvoice      DocumentKind = "invoice"
	DocumentKindWarranty     DocumentKind = "warranty"
	DocumentKindPurchase     DocumentKind = "purchase"
	DocumentKindServiceOrder DocumentKind = "service_order"
	DocumentKindProduct      DocumentKind = "product"
	DocumentKindEquipment    DocumentKind = "equipment"
)

type documentFormat struct {
	prefix string
	layout string
	table  string
	column string
}

var documentFormats = map[DocumentKind]documentFormat{
	DocumentKindSale:         {"V", "20060102", "sales", "number"},
	DocumentKindInvoice:      {"F", "20060102", "invoices", "number"},
	DocumentKindWarranty:     {"G", "20060102", "warranties", "number"},
	DocumentKindPurchase:     {"C", "200601", "purchases", "number"},
	DocumentKindServiceOrder: {"OS", "20060102", "service_orders", "number"},
	DocumentKindProduct:      {"PRD", "200601", "products", "code"},
	DocumentKindEquipment:    {"EQ", "200601", "equipment", "code"},
}

// DocumentSequence holds the last number handed out per kind and period.
type DocumentSequence struct {
	ID        int          `gorm:"primary_key" json:"id"`
	Kind      DocumentKind `gorm:"size:20;not null;uniqueIndex:uniq_document_sequence" json:"kind"`
	Period    string       `gorm:"size:8;not null;uniqueIndex:uniq_document_sequence" json:"period"`
	LastValue int          `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextDocumentNumber allocates <prefix><period><seq> inside tx. The sequence row
// stays locked until tx ends, so concurrent allocations for the same period
// serialize and a rollback returns the number.
func NextDocumentNumber(tx *gorm.DB, kind DocumentKind, at time.Time) (string, error) {
	format, ok := documentFormats[kind]
	if !ok {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}

	_, span := tracer.Start(tx.Statement.Context, "models.NextDocumentNumber")
	defer span.End()

	cfg, err := activeConfiguration(tx)
	if err != nil {
		return "", err
	}
	period := at.In(utils.LoadLocation(cfg.Timezone)).Format(format.layout)
	prefix := format.prefix + period
	span.SetAttributes(attribute.String("document.kind", string(kind)), attribute.String("document.period", period))

	var seq DocumentSequence
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ? AND period = ?", kind, period).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seed, err := highestExistingNumber(tx, format, prefix)
		if err != nil {
			return "", err
		}
		seq = DocumentSequence{Kind: kind, Period: period, LastValue: seed}
		// a concurrent first allocation loses on the unique index
		if err := tx.Create(&seq).Error; err != nil {
			span.RecordError(err)
			return "", utils.ClassifyDBError(err)
		}
	} else if err != nil {
		return "", err
	}

	seq.LastValue++
	if err := tx.Model(&DocumentSequence{}).Where("id = ?", seq.ID).
		Update("last_value", seq.LastValue).Error; err != nil {
		return "", utils.ClassifyDBError(err)
	}

	return formatDocumentNumber(prefix, seq.LastValue), nil
}

func formatDocumentNumber(prefix string, value int) string {
	return fmt.Sprintf("%s%04d", prefix, value)
}

// highestExistingNumber finds the largest suffix already used with prefix, so
// numbers issued before the sequence row existed are never reissued.
func highestExistingNumber(tx *gorm.DB, format documentFormat, prefix string) (int, error) {
	var latest string
	err := tx.Table(format.table).
		Select(format.column).
		Where(format.column+" LIKE ?", prefix+"%").
		Order("LENGTH(" + format.column + ") DESC").
		Order(format.column + " DESC").
		Limit(1).
		Scan(&latest).Error
	if err != nil {
		return 0, err
	}
	if latest == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil {
		return 0, nil
	}
	return n, nil
}
