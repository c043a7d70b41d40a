package domain

import (
	"testing"

	"github.com/google/uuid"
)

func sampleContact() Contact {
	return Contact{
		ID:       uuid.New(),
		MobileNo: "+39 333 123 4567",
		Phones: []ContactPhone{
			{ID: uuid.New(), Phone: "+39 333 123 4567", IsPrimaryMobileNo: true},
			{ID: uuid.New(), Phone: "02-555-0101"},
		},
	}
}

func TestOwnsPhone(t *testing.T) {
	c := sampleContact()

	if !c.OwnsPhone("393331234567") {
		t.Fatalf("expected canonical phone to be owned")
	}
	if !c.OwnsPhone("025550101") {
		t.Fatalf("expected secondary phone to be owned")
	}
	if c.OwnsPhone("393339999999") {
		t.Fatalf("unexpected ownership of foreign number")
	}
	if c.OwnsPhone("") {
		t.Fatalf("empty digits must never be owned")
	}
}

func TestVerifyRejectsForeignNumber(t *testing.T) {
	c := sampleContact()
	other := sampleContact()
	other.MobileNo = "+44 207 946 0000"
	other.Phones = nil

	if _, ok := Verify(c, "442079460000"); ok {
		t.Fatalf("expected number owned by another contact to be rejected")
	}

	v, ok := Verify(c, "+39 333-123-4567")
	if !ok {
		t.Fatalf("expected own number to verify")
	}
	if v.ContactID() != c.ID || v.Digits() != "393331234567" {
		t.Fatalf("unexpected verified phone %+v", v)
	}
	if (VerifiedPhone{}).IsZero() != true {
		t.Fatalf("zero value must not be verified")
	}
}

func TestPrettyPhoneUpdate(t *testing.T) {
	c := Contact{
		ID:       uuid.New(),
		MobileNo: "393331234567",
		Phones:   []ContactPhone{{ID: uuid.New(), Phone: "393331234567", IsPrimaryMobileNo: true}},
	}

	mobile, rowID, changed := c.PrettyPhoneUpdate("393331234567")
	if !changed {
		t.Fatalf("expected raw digits to be rewritten")
	}
	if mobile != "+39 333 123 4567" {
		t.Fatalf("unexpected mobile %q", mobile)
	}
	if rowID != c.Phones[0].ID {
		t.Fatalf("expected primary mobile row to be rewritten")
	}

	c.MobileNo = mobile
	c.Phones[0].Phone = mobile
	if _, _, changed := c.PrettyPhoneUpdate("393331234567"); changed {
		t.Fatalf("expected already pretty contact to be left alone")
	}
}

func TestPrettyPhoneUpdateKeepsOtherPrimaryNumber(t *testing.T) {
	c := Contact{
		ID:       uuid.New(),
		MobileNo: "+39 333 123 4567",
		Phones: []ContactPhone{
			{ID: uuid.New(), Phone: "+39 333 123 4567", IsPrimaryMobileNo: true},
			{ID: uuid.New(), Phone: "025550101"},
		},
	}

	mobile, rowID, changed := c.PrettyPhoneUpdate("025550101")
	if changed || rowID != uuid.Nil || mobile != c.MobileNo {
		t.Fatalf("secondary match must not overwrite the primary number")
	}
}
