package sessioninfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crbraun/irsdkrec/internal/model"
)

const sampleDoc = `
WeekendInfo:
  TrackName: spa
  TrackID: 163
  TrackLength: 7.00 km
  TrackPitSpeedLimit: 60.0
  Official: ~
DriverInfo:
  Drivers:
  - CarIdx: 0
    UserName: A
  - CarIdx: 1
    UserName: B
`

func TestParseYAMLShapes(t *testing.T) {
	root, err := ParseYAML([]byte(sampleDoc))
	require.NoError(t, err)

	wi := root.Get("WeekendInfo")
	checks := []struct {
		name string
		kind Kind
		text string
	}{
		{"TrackName", KindString, "spa"},
		{"TrackID", KindInt, "163"},
		{"TrackLength", KindString, "7.00 km"},
		{"TrackPitSpeedLimit", KindDouble, "60"},
		{"Official", KindNull, ""},
	}
	for _, c := range checks {
		assert.Equal(t, c.kind, wi.Get(c.name).Kind(), c.name)
		assert.Equal(t, c.text, wi.Get(c.name).Text(), c.name)
	}

	drivers := root.Get("DriverInfo").Get("Drivers")
	assert.Equal(t, KindList, drivers.Kind())
	assert.Len(t, drivers.Items(), 2)

	var names []string
	for _, m := range root.Members() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"WeekendInfo", "DriverInfo"}, names)
}

func TestParseYAMLAliases(t *testing.T) {
	root, err := ParseYAML([]byte("base: &b {Gear: 3}\ncopy: *b\n"))
	require.NoError(t, err)
	assert.Equal(t, "3", root.Get("copy").Get("Gear").Text())
}

func TestParseYAMLEmptyAndInvalid(t *testing.T) {
	root, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Nil(t, root)

	_, err = ParseYAML([]byte("a: [unterminated\n"))
	assert.Error(t, err)
	_, err = ParseYAML([]byte("? [a, b]\n: 1\n"))
	assert.ErrorIs(t, err, model.ErrShapeInference)
}

func TestScalarText(t *testing.T) {
	n := Aggregate(
		Member{Name: "A", Value: Int(1)},
		Member{Name: "B", Value: Int(2)},
		Member{Name: "A", Value: Int(3)},
	)
	require.Len(t, n.Members(), 2)
	assert.Equal(t, "A", n.Members()[0].Name)
	assert.Equal(t, "3", n.Get("A").Text())

	assert.Equal(t, "0.1", Float(0.1).Text())
	assert.Equal(t, "1234567.5", Double(1234567.5).Text())
	assert.Equal(t, "2500000", Float(2500000).Text())
	assert.Equal(t, "1e+20", Double(1e20).Text())
}
