package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RescalesUpToMinScale(t *testing.T) {
	m, err := Parse("12.5")
	require.NoError(t, err)
	assert.Equal(t, MinScale, m.Scale)
	assert.Equal(t, "12.5000", m.String())
}

func TestParse_KeepsLargerScaleExactly(t *testing.T) {
	m, err := Parse("1.123456")
	require.NoError(t, err)
	assert.Equal(t, 6, m.Scale)
	assert.Equal(t, "1.123456", m.String())
}

func TestParse_Negative(t *testing.T) {
	m, err := Parse("-42.00")
	require.NoError(t, err)
	assert.Equal(t, "-42.0000", m.String())
}

func TestParse_RejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-number")
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestParse_RejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestMustParse_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustParse("garbage") })
}

func TestAdd_RescalesToLargerOperand(t *testing.T) {
	a := MustParse("1.50")
	b := MustParse("0.25")
	assert.Equal(t, "1.7500", a.Add(b).String())
}

func TestSub_RescalesToLargerOperand(t *testing.T) {
	a := MustParse("10.00")
	b := MustParse("3.5")
	assert.Equal(t, "6.5000", a.Sub(b).String())
}

func TestAbs_NegativeBecomesPositive(t *testing.T) {
	m := MustParse("-5.25")
	assert.Equal(t, "5.2500", m.Abs().String())
}

func TestAbs_PositiveUnchanged(t *testing.T) {
	m := MustParse("5.25")
	assert.Equal(t, "5.2500", m.Abs().String())
}

func TestNeg_FlipsSign(t *testing.T) {
	m := MustParse("7.50")
	assert.Equal(t, "-7.5000", m.Neg().String())
	assert.Equal(t, "7.5000", m.Neg().Neg().String())
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero().IsZero())
	assert.False(t, MustParse("0.0001").IsZero())
}

func TestCmp_OrdersAcrossScales(t *testing.T) {
	a := MustParse("1.5")
	b := MustParse("1.500001")
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(MustParse("1.5000")))
}

func TestEqual_IgnoresScaleDifference(t *testing.T) {
	assert.True(t, MustParse("1.5").Equal(MustParse("1.500000")))
	assert.False(t, MustParse("1.5").Equal(MustParse("1.51")))
}

func TestWithinTolerance_BoundaryIsInclusive(t *testing.T) {
	a := MustParse("100.00")
	b := MustParse("100.05")
	tol := MustParse("0.05")
	assert.True(t, a.WithinTolerance(b, tol), "an exact 0.05 difference must pass")

	b2 := MustParse("100.0501")
	assert.False(t, a.WithinTolerance(b2, tol), "0.0501 must fail a 0.05 tolerance")
}

func TestSum_AddsAllValues(t *testing.T) {
	total := Sum([]Money{MustParse("1.00"), MustParse("2.50"), MustParse("0.25")})
	assert.Equal(t, "3.7500", total.String())
}

func TestSum_EmptySliceIsZero(t *testing.T) {
	assert.True(t, Sum(nil).IsZero())
}

func TestRescaleTo_RoundsHalfUpOnDownscale(t *testing.T) {
	m := MustParse("1.2345")
	assert.Equal(t, "1.235", m.RescaleTo(3).String())

	neg := MustParse("-1.2345")
	assert.Equal(t, "-1.235", neg.RescaleTo(3).String())
}

func TestRescaleTo_ExactOnUpscale(t *testing.T) {
	m := MustParse("1.5")
	assert.Equal(t, "1.500000", m.RescaleTo(6).String())
}

func TestDisplayRounded_RoundsHalfUpWithoutMutatingStorage(t *testing.T) {
	m := MustParse("19.995")
	assert.Equal(t, "20.00", m.DisplayRounded(2))
	// The original value is untouched by rendering at a display scale.
	assert.Equal(t, "19.9950", m.String())
}

func TestMarshalJSON_EncodesAsDecimalString(t *testing.T) {
	b, err := json.Marshal(MustParse("12.30"))
	require.NoError(t, err)
	assert.Equal(t, `"12.3000"`, string(b))
}

func TestUnmarshalJSON_AcceptsStringOrNumber(t *testing.T) {
	var fromString Money
	require.NoError(t, json.Unmarshal([]byte(`"45.67"`), &fromString))
	assert.Equal(t, "45.6700", fromString.String())

	var fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`45.67`), &fromNumber))
	assert.Equal(t, "45.6700", fromNumber.String())
}

func TestUnmarshalJSON_RejectsInvalidShape(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`{"not":"a money value"}`), &m)
	assert.Error(t, err)
}

func TestValue_ReturnsCanonicalDecimalString(t *testing.T) {
	v, err := MustParse("9.99").Value()
	require.NoError(t, err)
	assert.Equal(t, "9.9900", v)
}

func TestScan_AcceptsEveryDriverShape(t *testing.T) {
	var fromString Money
	require.NoError(t, fromString.Scan("1.23"))
	assert.Equal(t, "1.2300", fromString.String())

	var fromBytes Money
	require.NoError(t, fromBytes.Scan([]byte("4.56")))
	assert.Equal(t, "4.5600", fromBytes.String())

	var fromInt Money
	require.NoError(t, fromInt.Scan(int64(7)))
	assert.Equal(t, "7.0000", fromInt.String())

	var fromFloat Money
	require.NoError(t, fromFloat.Scan(8.5))
	assert.Equal(t, "8.5000", fromFloat.String())

	var fromNil Money
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())
}

func TestScan_RejectsUnsupportedType(t *testing.T) {
	var m Money
	assert.Error(t, m.Scan(true))
}
