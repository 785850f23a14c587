package models

import (
	"fmt"
	"strings"
)

type enumValue interface {
	~string
	IsValid() bool
}

// unmarshalEnum backs UnmarshalText so request bodies reject unknown values.
func unmarshalEnum[T enumValue](dst *T, text []byte, name string) error {
	v := T(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.IsValid() {
		return fmt.Errorf("invalid %s %q", name, string(text))
	}
	*dst = v
	return nil
}

type UserRole string

const (
	UserRoleSuperAdmin UserRole = "SUPER_ADMIN"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleCustomer   UserRole = "CUSTOMER"
	UserRoleTechnician UserRole = "TECHNICIAN"
	UserRoleSupplier   UserRole = "SUPPLIER"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleSuperAdmin, UserRoleAdmin, UserRoleCustomer, UserRoleTechnician, UserRoleSupplier:
		return true
	}
	return false
}

func (r *UserRole) UnmarshalText(text []byte) error { return unmarshalEnum(r, text, "role") }

// IsStaff covers roles that operate the back office.
func (r UserRole) IsStaff() bool {
	return r == UserRoleSuperAdmin || r == UserRoleAdmin
}

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusAbandoned CartStatus = "ABANDONED"
	CartStatusConverted CartStatus = "CONVERTED"
	CartStatusExpired   CartStatus = "EXPIRED"
)

func (s CartStatus) IsValid() bool {
	switch s {
	case CartStatusActive, CartStatusAbandoned, CartStatusConverted, CartStatusExpired:
		return true
	}
	return false
}

func (s *CartStatus) UnmarshalText(text []byte) error { return unmarshalEnum(s, text, "cart status") }

type SaleStatus string

const (
	SaleStatusPending SaleStatus = "PENDING"
	SaleStatusPaid    SaleStatus = "PAID"
	SaleStatusPartial SaleStatus = "PARTIAL"
	SaleStatusVoid    SaleStatus = "VOID"
	SaleStatusCredit  SaleStatus = "CREDIT"
)

func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusPaid, SaleStatusPartial, SaleStatusVoid, SaleStatusCredit:
		return true
	}
	return false
}

func (s *SaleStatus) UnmarshalText(text []byte) error { return unmarshalEnum(s, text, "sale status") }

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "CASH"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodTransfer   PaymentMethod = "TRANSFER"
	PaymentMethodCredit     PaymentMethod = "CREDIT"
	PaymentMethodMixed      PaymentMethod = "MIXED"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodDebitCard, PaymentMethodCreditCard, PaymentMethodTransfer, PaymentMethodCredit, PaymentMethodMixed:
		return true
	}
	return false
}

func (m *PaymentMethod) UnmarshalText(text []byte) error {
	return unmarshalEnum(m, text, "payment method")
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusIssued  InvoiceStatus = "ISSUED"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid:
		return true
	}
	return false
}

func (s *InvoiceStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(s, text, "invoice status")
}

type WarrantyStatus string

const (
	WarrantyStatusActive     WarrantyStatus = "ACTIVE"
	WarrantyStatusExpired    WarrantyStatus = "EXPIRED"
	WarrantyStatusClaimed    WarrantyStatus = "CLAIMED"
	WarrantyStatusProcessing WarrantyStatus = "PROCESSING"
	WarrantyStatusRejected   WarrantyStatus = "REJECTED"
)

func (s WarrantyStatus) IsValid() bool {
	switch s {
	case WarrantyStatusActive, WarrantyStatusExpired, WarrantyStatusClaimed, WarrantyStatusProcessing, WarrantyStatusRejected:
		return true
	}
	return false
}

func (s *WarrantyStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(s, text, "warranty status")
}

type ServiceOrderStatus string

const (
	ServiceOrderStatusPending    ServiceOrderStatus = "PENDING"
	ServiceOrderStatusInProgress ServiceOrderStatus = "IN_PROGRESS"
	ServiceOrderStatusPaused     ServiceOrderStatus = "PAUSED"
	ServiceOrderStatusCompleted  ServiceOrderStatus = "COMPLETED"
	ServiceOrderStatusCancelled  ServiceOrderStatus = "CANCELLED"
	ServiceOrderStatusInvoiced   ServiceOrderStatus = "INVOICED"
)

func (s ServiceOrderStatus) IsValid() bool {
	switch s {
	case ServiceOrderStatusPending, ServiceOrderStatusInProgress, ServiceOrderStatusPaused,
		ServiceOrderStatusCompleted, ServiceOrderStatusCancelled, ServiceOrderStatusInvoiced:
		return true
	}
	return false
}

func (s *ServiceOrderStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(s, text, "service order status")
}

type ServiceOrderPriority string

const (
	ServiceOrderPriorityLow    ServiceOrderPriority = "LOW"
	ServiceOrderPriorityMedium ServiceOrderPriority = "MEDIUM"
	ServiceOrderPriorityHigh   ServiceOrderPriority = "HIGH"
	ServiceOrderPriorityUrgent ServiceOrderPriority = "URGENT"
)

func (p ServiceOrderPriority) IsValid() bool {
	switch p {
	case ServiceOrderPriorityLow, ServiceOrderPriorityMedium, ServiceOrderPriorityHigh, ServiceOrderPriorityUrgent:
		return true
	}
	return false
}

func (p *ServiceOrderPriority) UnmarshalText(text []byte) error {
	return unmarshalEnum(p, text, "priority")
}

type CustomerType string

const (
	CustomerTypeNatural CustomerType = "NATURAL"
	CustomerTypeLegal   CustomerType = "LEGAL"
)

func (t CustomerType) IsValid() bool {
	return t == CustomerTypeNatural || t == CustomerTypeLegal
}

func (t *CustomerType) UnmarshalText(text []byte) error {
	return unmarshalEnum(t, text, "customer type")
}

type SupplierDocumentType string

const (
	SupplierDocumentTypeNIT SupplierDocumentType = "NIT"
	SupplierDocumentTypeCC  SupplierDocumentType = "CC"
	SupplierDocumentTypeCE  SupplierDocumentType = "CE"
)

func (t SupplierDocumentType) IsValid() bool {
	switch t {
	case SupplierDocumentTypeNIT, SupplierDocumentTypeCC, SupplierDocumentTypeCE:
		return true
	}
	return false
}

func (t *SupplierDocumentType) UnmarshalText(text []byte) error {
	return unmarshalEnum(t, text, "document type")
}

type TechnicianLevel string

const (
	TechnicianLevelJunior       TechnicianLevel = "JUNIOR"
	TechnicianLevelIntermediate TechnicianLevel = "INTERMEDIATE"
	TechnicianLevelSenior       TechnicianLevel = "SENIOR"
	TechnicianLevelSpecialist   TechnicianLevel = "SPECIALIST"
)

func (l TechnicianLevel) IsValid() bool {
	switch l {
	case TechnicianLevelJunior, TechnicianLevelIntermediate, TechnicianLevelSenior, TechnicianLevelSpecialist:
		return true
	}
	return false
}

func (l *TechnicianLevel) UnmarshalText(text []byte) error {
	return unmarshalEnum(l, text, "technician level")
}

type TechnicianStatus string

const (
	TechnicianStatusAvailable TechnicianStatus = "AVAILABLE"
	TechnicianStatusBusy      TechnicianStatus = "BUSY"
	TechnicianStatusOnBreak   TechnicianStatus = "ON_BREAK"
	TechnicianStatusVacation  TechnicianStatus = "VACATION"
	TechnicianStatusDisabled  TechnicianStatus = "DISABLED"
)

func (s TechnicianStatus) IsValid() bool {
	switch s {
	case TechnicianStatusAvailable, TechnicianStatusBusy, TechnicianStatusOnBreak, TechnicianStatusVacation, TechnicianStatusDisabled:
		return true
	}
	return false
}

func (s *TechnicianStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(s, text, "technician status")
}

type ServiceCategory string

const (
	ServiceCategoryHardware     ServiceCategory = "HARDWARE"
	ServiceCategorySoftware     ServiceCategory = "SOFTWARE"
	ServiceCategoryNetwork      ServiceCategory = "NETWORK"
	ServiceCategoryMaintenance  ServiceCategory = "MAINTENANCE"
	ServiceCategoryInstallation ServiceCategory = "INSTALLATION"
	ServiceCategoryConsulting   ServiceCategory = "CONSULTING"
)

func (c ServiceCategory) IsValid() bool {
	switch c {
	case ServiceCategoryHardware, ServiceCategorySoftware, ServiceCategoryNetwork,
		ServiceCategoryMaintenance, ServiceCategoryInstallation, ServiceCategoryConsulting:
		return true
	}
	return false
}

func (c *ServiceCategory) UnmarshalText(text []byte) error {
	return unmarshalEnum(c, text, "service category")
}

type PurchaseStatus string

const (
	PurchaseStatusRequested         PurchaseStatus = "REQUESTED"
	PurchaseStatusQuoted            PurchaseStatus = "QUOTED"
	PurchaseStatusApproved          PurchaseStatus = "APPROVED"
	PurchaseStatusOrdered           PurchaseStatus = "ORDERED"
	PurchaseStatusPartiallyReceived PurchaseStatus = "PARTIALLY_RECEIVED"
	PurchaseStatusReceived          PurchaseStatus = "RECEIVED"
	PurchaseStatusInvoiced          PurchaseStatus = "INVOICED"
	PurchaseStatusPaid              PurchaseStatus = "PAID"
	PurchaseStatusCancelled         PurchaseStatus = "CANCELLED"
)

func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusRequested, PurchaseStatusQuoted, PurchaseStatusApproved, PurchaseStatusOrdered,
		PurchaseStatusPartiallyReceived, PurchaseStatusReceived, PurchaseStatusInvoiced, PurchaseStatusPaid, PurchaseStatusCancelled:
		return true
	}
	return false
}

func (s *PurchaseStatus) UnmarshalText(text []byte) error {
	return unmarshalEnum(s, text, "purchase status")
}

type StockReferenceType string

const (
	StockReferenceTypeSale       StockReferenceType = "SALE"
	StockReferenceTypePurchase   StockReferenceType = "PURCHASE"
	StockReferenceTypeSaleVoid   StockReferenceType = "SALE_VOID"
	StockReferenceTypeAdjustment StockReferenceType = "ADJUSTMENT"
)

func (t StockReferenceType) IsValid() bool {
	switch t {
	case StockReferenceTypeSale, StockReferenceTypePurchase, StockReferenceTypeSaleVoid, StockReferenceTypeAdjustment:
		return true
	}
	return false
}

type ActivityType string

const (
	ActivityTypeLogin     ActivityType = "LOGIN"
	ActivityTypeLogout    ActivityType = "LOGOUT"
	ActivityTypeCreate    ActivityType = "CREATE"
	ActivityTypeUpdate    ActivityType = "UPDATE"
	ActivityTypeDelete    ActivityType = "DELETE"
	ActivityTypeView      ActivityType = "VIEW"
	ActivityTypeExport    ActivityType = "EXPORT"
	ActivityTypeApprove   ActivityType = "APPROVE"
	ActivityTypeReject    ActivityType = "REJECT"
	ActivityTypeConfigure ActivityType = "CONFIGURE"
)

func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeLogin, ActivityTypeLogout, ActivityTypeCreate, ActivityTypeUpdate, ActivityTypeDelete,
		ActivityTypeView, ActivityTypeExport, ActivityTypeApprove, ActivityTypeReject, ActivityTypeConfigure:
		return true
	}
	return false
}

func (t *ActivityType) UnmarshalText(text []byte) error {
	return unmarshalEnum(t, text, "activity type")
}

type NotificationType string

const (
	NotificationTypeSale      NotificationType = "SALE"
	NotificationTypeWarranty  NotificationType = "WARRANTY"
	NotificationTypeInventory NotificationType = "INVENTORY"
	NotificationTypeService   NotificationType = "SERVICE"
	NotificationTypePurchase  NotificationType = "PURCHASE"
	NotificationTypeSystem    NotificationType = "SYSTEM"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeSale, NotificationTypeWarranty, NotificationTypeInventory,
		NotificationTypeService, NotificationTypePurchase, NotificationTypeSystem:
		return true
	}
	return false
}

// statusTransitions lists the statuses reachable from each status.
type statusTransitions[T comparable] map[T][]T

func (t statusTransitions[T]) allows(from T, to T) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

var invoiceTransitions = statusTransitions[InvoiceStatus]{
	InvoiceStatusDraft:   {InvoiceStatusIssued, InvoiceStatusVoid},
	InvoiceStatusIssued:  {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusVoid},
}

var warrantyTransitions = statusTransitions[WarrantyStatus]{
	WarrantyStatusActive:     {WarrantyStatusProcessing, WarrantyStatusClaimed, WarrantyStatusExpired},
	WarrantyStatusProcessing: {WarrantyStatusClaimed, WarrantyStatusRejected},
}

// COMPLETED -> INVOICED is reserved to InvoiceServiceOrder.
var serviceOrderTransitions = statusTransitions[ServiceOrderStatus]{
	ServiceOrderStatusPending:    {ServiceOrderStatusInProgress, ServiceOrderStatusCancelled},
	ServiceOrderStatusInProgress: {ServiceOrderStatusPaused, ServiceOrderStatusCompleted, ServiceOrderStatusCancelled},
	ServiceOrderStatusPaused:     {ServiceOrderStatusInProgress, ServiceOrderStatusCancelled},
}

// RECEIVED is reached through ReceivePurchase only.
var purchaseTransitions = statusTransitions[PurchaseStatus]{
	PurchaseStatusRequested:         {PurchaseStatusQuoted, PurchaseStatusApproved, PurchaseStatusCancelled},
	PurchaseStatusQuoted:            {PurchaseStatusApproved, PurchaseStatusCancelled},
	PurchaseStatusApproved:          {PurchaseStatusOrdered, PurchaseStatusCancelled},
	PurchaseStatusOrdered:           {PurchaseStatusCancelled},
	PurchaseStatusPartiallyReceived: {},
	PurchaseStatusReceived:          {PurchaseStatusInvoiced},
	PurchaseStatusInvoiced:          {PurchaseStatusPaid},
}
