package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWrapMongoErr_Taxonomy(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	assert.Equal(t, KindValidation, Kind(wrapMongoErr("storing ioc", dup)),
		"a duplicate key is a data conflict, not an outage")

	assert.Equal(t, KindInternal, Kind(wrapMongoErr("storing ioc", context.DeadlineExceeded)))
	assert.Equal(t, KindConnection, Kind(wrapMongoErr("storing ioc", errors.New("connection refused"))))
}
