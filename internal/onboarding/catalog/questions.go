package catalog

import (
	"net/mail"
	"strings"

	"vendry/internal/onboarding/draft"
	dErrors "vendry/pkg/domain-errors"
)

// Conditions a listing can be offered in.
var conditions = []string{"new", "like_new", "good", "fair", "for_parts"}

// Shipping options offered at listing time.
var shippingOptions = []string{"pickup_only", "courier", "pickup_and_courier"}

const maxTitleLength = 140

// Default returns the production question catalog. Order is significant: it
// defines traversal within and across milestones.
func Default() *Catalog {
	return New([]Question{
		{
			ID:        "listing.intro",
			Milestone: MilestoneListing,
			Kind:      KindIntro,
			Heading:   "Let's get your first listing ready",
			Subtitle:  "We'll walk through the item details step by step.",
		},
		{
			ID:        "listing.item_title",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldItemTitle},
			Kind:      KindText,
			Heading:   "What are you selling?",
			Validate: func(d draft.Draft) error {
				title := strings.TrimSpace(d.ItemTitle)
				if title == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "give your item a title")
				}
				if len(title) > maxTitleLength {
					return dErrors.Newf(dErrors.CodeInvalidInput, "keep the title under %d characters", maxTitleLength)
				}
				return nil
			},
		},
		{
			ID:        "listing.category",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldCategories},
			Kind:      KindMultiSelectSearch,
			Heading:   "Pick one or more categories",
			Validate: func(d draft.Draft) error {
				if len(d.Categories) == 0 {
					return dErrors.New(dErrors.CodeInvalidInput, "pick at least one category")
				}
				return nil
			},
		},
		{
			ID:        "listing.condition",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldCondition},
			Kind:      KindSingleSelect,
			Heading:   "What condition is it in?",
			Validate: func(d draft.Draft) error {
				if !member(conditions, d.Condition) {
					return dErrors.New(dErrors.CodeInvalidInput, "choose a condition")
				}
				return nil
			},
		},
		{
			ID:        "listing.description",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldDescription},
			Kind:      KindLongText,
			Heading:   "Describe your item",
			Subtitle:  "Buyers see this on the listing page.",
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.Description) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "add a short description")
				}
				return nil
			},
		},
		{
			ID:        "listing.photos",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldPhotos},
			Kind:      KindMultiFile,
			Heading:   "Add photos",
			Subtitle:  "At least one photo is required.",
			Validate: func(d draft.Draft) error {
				// Name presence counts as "chosen" even when the blob no
				// longer resolves after a reload.
				for _, f := range d.Photos {
					if f.Chosen() {
						return nil
					}
				}
				return dErrors.New(dErrors.CodeInvalidInput, "add at least one photo")
			},
		},
		{
			ID:        "listing.price",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldPriceCents, draft.FieldCurrency},
			Kind:      KindComposite,
			Heading:   "Set your price",
			Validate: func(d draft.Draft) error {
				if d.PriceCents <= 0 {
					return dErrors.New(dErrors.CodeInvalidInput, "price must be greater than zero")
				}
				if strings.TrimSpace(d.Currency) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "pick a currency")
				}
				return nil
			},
		},
		{
			ID:        "listing.shipping",
			Milestone: MilestoneListing,
			Fields:    []draft.FieldKey{draft.FieldShipping},
			Kind:      KindSingleSelect,
			Heading:   "How will buyers get it?",
			Validate: func(d draft.Draft) error {
				if !member(shippingOptions, d.Shipping) {
					return dErrors.New(dErrors.CodeInvalidInput, "choose a delivery option")
				}
				return nil
			},
		},

		{
			ID:        "account.type",
			Milestone: MilestoneAccount,
			Fields:    []draft.FieldKey{draft.FieldAccountType},
			Kind:      KindCardChoice,
			Heading:   "Are you selling as a person or a business?",
			Validate: func(d draft.Draft) error {
				if d.AccountType != draft.AccountPersonal && d.AccountType != draft.AccountBusiness {
					return dErrors.New(dErrors.CodeInvalidInput, "choose an account type")
				}
				return nil
			},
		},
		{
			ID:        "account.personal_details",
			Milestone: MilestoneAccount,
			Fields:    []draft.FieldKey{draft.FieldFullName, draft.FieldDateOfBirth},
			Kind:      KindComposite,
			Heading:   "Tell us about yourself",
			IsVisible: func(d draft.Draft) bool { return d.AccountType == draft.AccountPersonal },
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.FullName) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter your full name")
				}
				if strings.TrimSpace(d.DateOfBirth) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter your date of birth")
				}
				return nil
			},
		},
		{
			ID:        "account.business_details",
			Milestone: MilestoneAccount,
			Fields:    []draft.FieldKey{draft.FieldLegalName, draft.FieldRegistrationNumber},
			Kind:      KindComposite,
			Heading:   "Tell us about your business",
			IsVisible: func(d draft.Draft) bool { return d.AccountType == draft.AccountBusiness },
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.LegalName) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the legal business name")
				}
				if strings.TrimSpace(d.RegistrationNumber) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the registration number")
				}
				return nil
			},
		},
		{
			ID:        "account.address",
			Milestone: MilestoneAccount,
			Fields: []draft.FieldKey{
				draft.FieldAddressLine1, draft.FieldCity,
				draft.FieldLatitude, draft.FieldLongitude,
			},
			Kind:    KindAddressMap,
			Heading: "Where are you based?",
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.AddressLine1) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter your street address")
				}
				if strings.TrimSpace(d.City) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter your city")
				}
				return nil
			},
		},
		{
			ID:        "account.contact",
			Milestone: MilestoneAccount,
			Fields:    []draft.FieldKey{draft.FieldContactEmail, draft.FieldContactPhone},
			Kind:      KindComposite,
			Heading:   "How can buyers reach you?",
			Validate: func(d draft.Draft) error {
				if _, err := mail.ParseAddress(d.ContactEmail); err != nil {
					return dErrors.New(dErrors.CodeInvalidInput, "enter a valid email address")
				}
				if strings.TrimSpace(d.ContactPhone) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter a phone number")
				}
				return nil
			},
		},

		{
			ID:        "verification_payment.phone_otp",
			Milestone: MilestoneVerificationPayment,
			Fields:    []draft.FieldKey{draft.FieldPhoneCode},
			Kind:      KindText,
			Heading:   "Verify your phone",
			Subtitle:  "Enter the 6-digit code we sent you.",
			Validate: func(d draft.Draft) error {
				if !isSixDigits(d.PhoneCode) {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the 6-digit code")
				}
				return nil
			},
		},
		{
			ID:        "verification_payment.id_document",
			Milestone: MilestoneVerificationPayment,
			Fields:    []draft.FieldKey{draft.FieldIDDocument},
			Kind:      KindSingleFile,
			Heading:   "Upload an ID document",
			Validate: func(d draft.Draft) error {
				if !d.IDDocument.Chosen() {
					return dErrors.New(dErrors.CodeInvalidInput, "upload an ID document")
				}
				return nil
			},
		},
		{
			ID:        "verification_payment.payout_method",
			Milestone: MilestoneVerificationPayment,
			Fields:    []draft.FieldKey{draft.FieldPayoutMethod},
			Kind:      KindCardChoice,
			Heading:   "How do you want to get paid?",
			Validate: func(d draft.Draft) error {
				if d.PayoutMethod != draft.PayoutBank && d.PayoutMethod != draft.PayoutMobileMoney {
					return dErrors.New(dErrors.CodeInvalidInput, "choose a payout method")
				}
				return nil
			},
		},
		{
			ID:        "verification_payment.bank_details",
			Milestone: MilestoneVerificationPayment,
			Fields: []draft.FieldKey{
				draft.FieldBankAccountHolder, draft.FieldBankAccountNumber, draft.FieldBankName,
			},
			Kind:      KindComposite,
			Heading:   "Your bank account",
			IsVisible: func(d draft.Draft) bool { return d.PayoutMethod == draft.PayoutBank },
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.BankAccountHolder) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the account holder name")
				}
				if strings.TrimSpace(d.BankAccountNumber) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the account number")
				}
				if strings.TrimSpace(d.BankName) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the bank name")
				}
				return nil
			},
		},
		{
			ID:        "verification_payment.mobile_money_details",
			Milestone: MilestoneVerificationPayment,
			Fields:    []draft.FieldKey{draft.FieldMobileProvider, draft.FieldMobileWalletNumber},
			Kind:      KindComposite,
			Heading:   "Your mobile money wallet",
			IsVisible: func(d draft.Draft) bool { return d.PayoutMethod == draft.PayoutMobileMoney },
			Validate: func(d draft.Draft) error {
				if strings.TrimSpace(d.MobileProvider) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "choose a provider")
				}
				if strings.TrimSpace(d.MobileWalletNumber) == "" {
					return dErrors.New(dErrors.CodeInvalidInput, "enter the wallet number")
				}
				return nil
			},
		},

		{
			ID:        "seller_hub.review",
			Milestone: MilestoneSellerHub,
			Kind:      KindReview,
			Heading:   "Review and finish",
			Subtitle:  "Check everything over, then open your shop.",
		},
	})
}

func member(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
