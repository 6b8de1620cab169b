package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone  string    `json:"phone" validate:"required,usphone"`
	Cutoff string    `json:"cutoff" validate:"timeofday"`
	Day    time.Time `json:"day" validate:"weekend"`
	Count  int       `json:"count" validate:"min=1,max=5"`
}

func TestStructCollectsMessages(t *testing.T) {
	s := sample{
		Phone:  "123",
		Cutoff: "25:00",
		Day:    time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), // Tuesday
		Count:  9,
	}
	err := Struct(s, map[string]string{
		"Phone":     "bad phone",
		"Day":       "weekends only",
		"Count.max": "too many",
	})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	byField := map[string]string{}
	for _, f := range verr.Fields {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "bad phone", byField["phone"])
	assert.Equal(t, "cutoff is invalid", byField["cutoff"])
	assert.Equal(t, "weekends only", byField["day"])
	assert.Equal(t, "too many", byField["count"])
}

func TestStructPasses(t *testing.T) {
	s := sample{
		Phone:  "(555) 123-4567",
		Cutoff: "22:00:00",
		Day:    time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), // Saturday
		Count:  1,
	}
	assert.NoError(t, Struct(s, nil))
}

func TestErrReturnsNilWhenEmpty(t *testing.T) {
	v := &Error{}
	assert.NoError(t, v.Err())

	v.Add("name", "Name is required")
	assert.EqualError(t, v.Err(), "Name is required")

	other := New("phone", "Bad phone")
	v.Merge(other)
	assert.Len(t, v.Fields, 2)
	assert.EqualError(t, v, "Name is required; Bad phone")
}
