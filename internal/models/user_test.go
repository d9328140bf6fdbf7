package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"9876543210":     "9876543210",
		"98765 43210":    "9876543210",
		"(987) 654-3210": "9876543210",
		"6000000000":     "6000000000",
	}
	for in, want := range valid {
		t.Run("accepts "+in, func(t *testing.T) {
			got, err := NormalizePhone(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	invalid := []string{"", "12345", "5876543210", "98765432101", "+91 9876543210", "abcdefghij"}
	for _, in := range invalid {
		t.Run("rejects "+in, func(t *testing.T) {
			_, err := NormalizePhone(in)
			assert.ErrorIs(t, err, ErrInvalidPhone)
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "******3210", MaskPhone("9876543210"))
	assert.Equal(t, "123", MaskPhone("123"))
}

func TestSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, a, HashToken(a))
}

func TestUpdateProfileRequest(t *testing.T) {
	t.Run("applies provided fields only", func(t *testing.T) {
		u := NewUser("9876543210", time.Now())
		u.FarmName = "Old Farm"
		name := "  Ramesh "
		sync := true

		err := UpdateProfileRequest{FarmerName: &name, SyncEnabled: &sync}.Apply(u)

		require.NoError(t, err)
		assert.Equal(t, "Ramesh", u.FarmerName)
		assert.Equal(t, "Old Farm", u.FarmName)
		assert.True(t, u.SyncEnabled)
		assert.Equal(t, "9876543210", u.PhoneNumber)
	})

	t.Run("rejects unknown language", func(t *testing.T) {
		u := NewUser("9876543210", time.Now())
		lang := "fr"

		err := UpdateProfileRequest{PreferredLanguage: &lang}.Apply(u)

		assert.ErrorIs(t, err, ErrUnsupportedLanguage)
		assert.Equal(t, DefaultLanguage, u.PreferredLanguage)
	})
}

func TestUserToApiUser(t *testing.T) {
	u := NewUser("9876543210", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	u.FarmName = "Green Acres"

	api := u.ToApiUser()

	assert.Equal(t, RoleFarmer, api.Role)
	assert.Equal(t, "2024-01-02T03:04:05Z", api.CreatedAt)
	require.NotNil(t, api.FarmName)
	assert.Equal(t, "Green Acres", *api.FarmName)
	assert.Nil(t, api.Name)
}

func TestOTPSession(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, code, err := NewOTPSession("9876543210", now, 5*time.Minute)
	require.NoError(t, err)

	assert.Regexp(t, `^\d{6}$`, code)
	assert.NotContains(t, s.CodeHash, code)
	assert.True(t, s.Matches(code))
	assert.False(t, s.Matches(""))
	assert.False(t, s.IsExpired(now.Add(5*time.Minute)))
	assert.True(t, s.IsExpired(now.Add(5*time.Minute+time.Second)))

	for i := 0; i < 3; i++ {
		assert.False(t, s.Exhausted(3))
		s.RecordAttempt()
	}
	assert.True(t, s.Exhausted(3))
}

func TestLanguages(t *testing.T) {
	langs := SupportedLanguages()
	assert.Len(t, langs, 12)
	assert.Equal(t, "en", langs[0].Code)

	hi, ok := LookupLanguage("hi")
	require.True(t, ok)
	assert.Equal(t, "हिन्दी (Hindi)", hi.DisplayText())

	opts := LanguageOptions("ta")
	selected := 0
	for _, o := range opts {
		if o.IsSelected {
			selected++
			assert.Equal(t, "ta", o.Code)
		}
	}
	assert.Equal(t, 1, selected)
	assert.False(t, IsSupportedLanguage("xx"))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, "text/csv", f.ContentType())

	_, err = ParseExportFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDashboardFilterNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := DashboardFilter{}
		require.NoError(t, f.Normalize())
		assert.Equal(t, DefaultDashboardYear, f.Year)
		assert.Equal(t, YearCalendar, f.YearType)
	})

	t.Run("rejects out of range year", func(t *testing.T) {
		f := DashboardFilter{Year: 2019}
		assert.ErrorIs(t, f.Normalize(), ErrInvalidYear)
	})

	t.Run("rejects bad year type", func(t *testing.T) {
		f := DashboardFilter{YearType: "Lunar"}
		assert.ErrorIs(t, f.Normalize(), ErrInvalidYearType)
	})

	t.Run("district needs state", func(t *testing.T) {
		f := DashboardFilter{District: "Pune Dist 1"}
		assert.ErrorIs(t, f.Normalize(), ErrDistrictWithoutState)
	})
}

func TestNewPaginationInfo(t *testing.T) {
	p := NewPaginationInfo(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrevious)

	p = NewPaginationInfo(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrevious)
}
