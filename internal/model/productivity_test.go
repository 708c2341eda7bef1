package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddEntryKeepsTotalInSync(t *testing.T) {
	var r ProductivityRecord
	for i := 0; i < 4; i++ {
		r.AddEntry(Entry{ID: NewID(), ProductiveTime: DefaultSessionSeconds})
	}

	assert.Equal(t, 4*DefaultSessionSeconds, r.ProductivityAchieved)
	assert.Equal(t, r.SumEntries(), r.ProductivityAchieved)
}

func TestRecompute(t *testing.T) {
	r := ProductivityRecord{
		ProductivityAchieved: 42,
		Entries:              []Entry{{ProductiveTime: 1500}, {ProductiveTime: 300}},
	}

	assert.True(t, r.Recompute())
	assert.Equal(t, int64(1800), r.ProductivityAchieved)
	assert.False(t, r.Recompute())
}

func TestNewIDsSortByCreation(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}
