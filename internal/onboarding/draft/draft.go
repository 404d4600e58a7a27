// Package draft holds the accumulating vendor onboarding answer record. A
// Draft is always structurally complete: every field has a well-defined
// default, so partially answered onboarding never yields missing fields.
// Mutations are value-semantic and synchronous; durable persistence is a
// separate explicit step owned by the wizard.
package draft

import (
	dErrors "vendry/pkg/domain-errors"
	pstrings "vendry/pkg/platform/strings"
)

// Account types selectable during onboarding.
const (
	AccountPersonal = "personal"
	AccountBusiness = "business"
)

// Payout methods selectable during onboarding.
const (
	PayoutBank        = "bank"
	PayoutMobileMoney = "mobile_money"
)

// FieldKey addresses a single draft field.
type FieldKey string

const (
	FieldItemTitle   FieldKey = "item_title"
	FieldCategories  FieldKey = "categories"
	FieldCondition   FieldKey = "condition"
	FieldDescription FieldKey = "description"
	FieldPhotos      FieldKey = "photos"
	FieldPriceCents  FieldKey = "price_cents"
	FieldCurrency    FieldKey = "currency"
	FieldShipping    FieldKey = "shipping"

	FieldAccountType        FieldKey = "account_type"
	FieldFullName           FieldKey = "full_name"
	FieldDateOfBirth        FieldKey = "date_of_birth"
	FieldLegalName          FieldKey = "legal_name"
	FieldRegistrationNumber FieldKey = "registration_number"
	FieldAddressLine1       FieldKey = "address_line1"
	FieldCity               FieldKey = "city"
	FieldLatitude           FieldKey = "latitude"
	FieldLongitude          FieldKey = "longitude"
	FieldContactEmail       FieldKey = "contact_email"
	FieldContactPhone       FieldKey = "contact_phone"

	FieldPhoneCode          FieldKey = "phone_code"
	FieldIDDocument         FieldKey = "id_document"
	FieldPayoutMethod       FieldKey = "payout_method"
	FieldBankAccountHolder  FieldKey = "bank_account_holder"
	FieldBankAccountNumber  FieldKey = "bank_account_number"
	FieldBankName           FieldKey = "bank_name"
	FieldMobileProvider     FieldKey = "mobile_provider"
	FieldMobileWalletNumber FieldKey = "mobile_wallet_number"
)

// FileMeta references a chosen file. The draft never owns file bytes; BlobRef
// points into the session-scoped blob registry and may stop resolving after a
// reload. A non-empty Name still counts as "a file was chosen".
type FileMeta struct {
	Name      string  `json:"name"`
	MimeType  string  `json:"mime_type"`
	SizeBytes int64   `json:"size_bytes"`
	BlobRef   BlobRef `json:"blob_ref,omitempty"`
}

// Chosen reports whether this meta records a selected file.
func (f FileMeta) Chosen() bool { return f.Name != "" }

// Draft is the whole onboarding answer record. Zero values are the defaults;
// New() additionally allocates the slice fields so JSON round-trips keep them
// as empty lists rather than null.
type Draft struct {
	ItemTitle   string     `json:"item_title"`
	Categories  []string   `json:"categories"`
	Condition   string     `json:"condition"`
	Description string     `json:"description"`
	Photos      []FileMeta `json:"photos"`
	PriceCents  int64      `json:"price_cents"`
	Currency    string     `json:"currency"`
	Shipping    string     `json:"shipping"`

	AccountType        string  `json:"account_type"`
	FullName           string  `json:"full_name"`
	DateOfBirth        string  `json:"date_of_birth"`
	LegalName          string  `json:"legal_name"`
	RegistrationNumber string  `json:"registration_number"`
	AddressLine1       string  `json:"address_line1"`
	City               string  `json:"city"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	ContactEmail       string  `json:"contact_email"`
	ContactPhone       string  `json:"contact_phone"`

	PhoneCode          string   `json:"phone_code"`
	IDDocument         FileMeta `json:"id_document"`
	PayoutMethod       string   `json:"payout_method"`
	BankAccountHolder  string   `json:"bank_account_holder"`
	BankAccountNumber  string   `json:"bank_account_number"`
	BankName           string   `json:"bank_name"`
	MobileProvider     string   `json:"mobile_provider"`
	MobileWalletNumber string   `json:"mobile_wallet_number"`
}

// New returns a structurally complete empty draft.
func New() Draft {
	return Draft{
		Categories: []string{},
		Photos:     []FileMeta{},
	}
}

// Clone deep-copies the draft so callers can hold snapshots safely.
func (d Draft) Clone() Draft {
	out := d
	out.Categories = append([]string{}, d.Categories...)
	out.Photos = append([]FileMeta{}, d.Photos...)
	return out
}

// Patch carries a partial update; nil pointers leave fields untouched. Slice
// fields replace wholesale; append semantics live on Store.AppendFile.
type Patch struct {
	ItemTitle   *string     `json:"item_title,omitempty"`
	Categories  *[]string   `json:"categories,omitempty"`
	Condition   *string     `json:"condition,omitempty"`
	Description *string     `json:"description,omitempty"`
	Photos      *[]FileMeta `json:"photos,omitempty"`
	PriceCents  *int64      `json:"price_cents,omitempty"`
	Currency    *string     `json:"currency,omitempty"`
	Shipping    *string     `json:"shipping,omitempty"`

	AccountType        *string  `json:"account_type,omitempty"`
	FullName           *string  `json:"full_name,omitempty"`
	DateOfBirth        *string  `json:"date_of_birth,omitempty"`
	LegalName          *string  `json:"legal_name,omitempty"`
	RegistrationNumber *string  `json:"registration_number,omitempty"`
	AddressLine1       *string  `json:"address_line1,omitempty"`
	City               *string  `json:"city,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	ContactEmail       *string  `json:"contact_email,omitempty"`
	ContactPhone       *string  `json:"contact_phone,omitempty"`

	PhoneCode          *string   `json:"phone_code,omitempty"`
	IDDocument         *FileMeta `json:"id_document,omitempty"`
	PayoutMethod       *string   `json:"payout_method,omitempty"`
	BankAccountHolder  *string   `json:"bank_account_holder,omitempty"`
	BankAccountNumber  *string   `json:"bank_account_number,omitempty"`
	BankName           *string   `json:"bank_name,omitempty"`
	MobileProvider     *string   `json:"mobile_provider,omitempty"`
	MobileWalletNumber *string   `json:"mobile_wallet_number,omitempty"`
}

// Apply merges a patch into the draft, producing a new snapshot. Every field
// keeps a defined value; nothing is ever removed.
func (d Draft) Apply(p Patch) Draft {
	out := d.Clone()
	if p.ItemTitle != nil {
		out.ItemTitle = *p.ItemTitle
	}
	if p.Categories != nil {
		// Repeated category picks collapse silently so validators count
		// distinct choices.
		out.Categories = pstrings.DedupeAndTrim(*p.Categories)
	}
	if p.Condition != nil {
		out.Condition = *p.Condition
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Photos != nil {
		out.Photos = append([]FileMeta{}, (*p.Photos)...)
	}
	if p.PriceCents != nil {
		out.PriceCents = *p.PriceCents
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if p.Shipping != nil {
		out.Shipping = *p.Shipping
	}
	if p.AccountType != nil {
		out.AccountType = *p.AccountType
	}
	if p.FullName != nil {
		out.FullName = *p.FullName
	}
	if p.DateOfBirth != nil {
		out.DateOfBirth = *p.DateOfBirth
	}
	if p.LegalName != nil {
		out.LegalName = *p.LegalName
	}
	if p.RegistrationNumber != nil {
		out.RegistrationNumber = *p.RegistrationNumber
	}
	if p.AddressLine1 != nil {
		out.AddressLine1 = *p.AddressLine1
	}
	if p.City != nil {
		out.City = *p.City
	}
	if p.Latitude != nil {
		out.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		out.Longitude = *p.Longitude
	}
	if p.ContactEmail != nil {
		out.ContactEmail = *p.ContactEmail
	}
	if p.ContactPhone != nil {
		out.ContactPhone = *p.ContactPhone
	}
	if p.PhoneCode != nil {
		out.PhoneCode = *p.PhoneCode
	}
	if p.IDDocument != nil {
		out.IDDocument = *p.IDDocument
	}
	if p.PayoutMethod != nil {
		out.PayoutMethod = *p.PayoutMethod
	}
	if p.BankAccountHolder != nil {
		out.BankAccountHolder = *p.BankAccountHolder
	}
	if p.BankAccountNumber != nil {
		out.BankAccountNumber = *p.BankAccountNumber
	}
	if p.BankName != nil {
		out.BankName = *p.BankName
	}
	if p.MobileProvider != nil {
		out.MobileProvider = *p.MobileProvider
	}
	if p.MobileWalletNumber != nil {
		out.MobileWalletNumber = *p.MobileWalletNumber
	}
	return out
}

// Set replaces exactly one field, producing a new snapshot. Unknown keys and
// mismatched value types are rejected as invalid input.
func (d Draft) Set(key FieldKey, value any) (Draft, error) {
	p := Patch{}
	switch key {
	case FieldItemTitle, FieldCondition, FieldDescription, FieldCurrency,
		FieldShipping, FieldAccountType, FieldFullName, FieldDateOfBirth,
		FieldLegalName, FieldRegistrationNumber, FieldAddressLine1, FieldCity,
		FieldContactEmail, FieldContactPhone, FieldPhoneCode, FieldPayoutMethod,
		FieldBankAccountHolder, FieldBankAccountNumber, FieldBankName,
		FieldMobileProvider, FieldMobileWalletNumber:
		v, ok := value.(string)
		if !ok {
			return d, typeMismatch(key)
		}
		return d.applyStringField(key, v), nil
	case FieldCategories:
		v, ok := value.([]string)
		if !ok {
			return d, typeMismatch(key)
		}
		p.Categories = &v
		return d.Apply(p), nil
	case FieldPhotos:
		v, ok := value.([]FileMeta)
		if !ok {
			return d, typeMismatch(key)
		}
		p.Photos = &v
		return d.Apply(p), nil
	case FieldPriceCents:
		v, ok := value.(int64)
		if !ok {
			return d, typeMismatch(key)
		}
		p.PriceCents = &v
		return d.Apply(p), nil
	case FieldLatitude:
		v, ok := value.(float64)
		if !ok {
			return d, typeMismatch(key)
		}
		p.Latitude = &v
		return d.Apply(p), nil
	case FieldLongitude:
		v, ok := value.(float64)
		if !ok {
			return d, typeMismatch(key)
		}
		p.Longitude = &v
		return d.Apply(p), nil
	case FieldIDDocument:
		v, ok := value.(FileMeta)
		if !ok {
			return d, typeMismatch(key)
		}
		p.IDDocument = &v
		return d.Apply(p), nil
	default:
		return d, dErrors.Newf(dErrors.CodeInvalidInput, "unknown draft field %q", key)
	}
}

func (d Draft) applyStringField(key FieldKey, v string) Draft {
	p := Patch{}
	switch key {
	case FieldItemTitle:
		p.ItemTitle = &v
	case FieldCondition:
		p.Condition = &v
	case FieldDescription:
		p.Description = &v
	case FieldCurrency:
		p.Currency = &v
	case FieldShipping:
		p.Shipping = &v
	case FieldAccountType:
		p.AccountType = &v
	case FieldFullName:
		p.FullName = &v
	case FieldDateOfBirth:
		p.DateOfBirth = &v
	case FieldLegalName:
		p.LegalName = &v
	case FieldRegistrationNumber:
		p.RegistrationNumber = &v
	case FieldAddressLine1:
		p.AddressLine1 = &v
	case FieldCity:
		p.City = &v
	case FieldContactEmail:
		p.ContactEmail = &v
	case FieldContactPhone:
		p.ContactPhone = &v
	case FieldPhoneCode:
		p.PhoneCode = &v
	case FieldPayoutMethod:
		p.PayoutMethod = &v
	case FieldBankAccountHolder:
		p.BankAccountHolder = &v
	case FieldBankAccountNumber:
		p.BankAccountNumber = &v
	case FieldBankName:
		p.BankName = &v
	case FieldMobileProvider:
		p.MobileProvider = &v
	case FieldMobileWalletNumber:
		p.MobileWalletNumber = &v
	}
	return d.Apply(p)
}

func typeMismatch(key FieldKey) error {
	return dErrors.Newf(dErrors.CodeInvalidInput, "wrong value type for draft field %q", key)
}
