package mongo

import (
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// sentUpdate decodes the first statement of the next update command the
// client sent.
func sentUpdate(mt *mtest.T) (filter, update bson.M, upsert bool) {
	mt.Helper()
	e := mt.GetStartedEvent()
	require.NotNil(mt, e)
	require.Equal(mt, "update", e.CommandName)

	stmt := e.Command.Lookup("updates", "0").Document()
	require.NoError(mt, bson.Unmarshal(stmt.Lookup("q").Document(), &filter))
	require.NoError(mt, bson.Unmarshal(stmt.Lookup("u").Document(), &update))
	if v, ok := stmt.Lookup("upsert").BooleanOK(); ok {
		upsert = v
	}
	return filter, update, upsert
}

// sentFilter decodes the filter of the next find command the client sent.
func sentFilter(mt *mtest.T) bson.M {
	mt.Helper()
	e := mt.GetStartedEvent()
	require.NotNil(mt, e)
	require.Equal(mt, "find", e.CommandName)

	var filter bson.M
	require.NoError(mt, bson.Unmarshal(e.Command.Lookup("filter").Document(), &filter))
	return filter
}

func updated(n int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}
