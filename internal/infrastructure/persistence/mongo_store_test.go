package persistence

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMongoFilter_MapsID(t *testing.T) {
	id := uuid.New()
	clinicID := uuid.New()

	filter := mongoFilter(Where("id", id, "clinic_id", clinicID))

	assert.Equal(t, bson.M{"_id": id, "clinic_id": clinicID}, filter)
}

func TestMongoSort(t *testing.T) {
	assert.Nil(t, mongoSort(Query{}))
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}}, mongoSort(Query{}.Order("created_at", true)))
	assert.Equal(t, bson.D{{Key: "position", Value: 1}}, mongoSort(Query{}.Order("position", false)))
	assert.Nil(t, mongoSort(Query{}.Order("$where", false)))
}

func TestCollectionOf(t *testing.T) {
	var reports []models.ReportModel
	name, err := collectionOf(&reports)
	require.NoError(t, err)
	assert.Equal(t, "reports", name)

	var images []*models.ReportImageModel
	name, err = collectionOf(&images)
	require.NoError(t, err)
	assert.Equal(t, "report_images", name)

	_, err = collectionOf(reports)
	assert.Error(t, err)

	var strs []string
	_, err = collectionOf(&strs)
	assert.Error(t, err)
}

func TestRegistry_UUIDRoundTrip(t *testing.T) {
	reg := NewRegistry()
	in := models.ReportImageModel{
		ID:       uuid.New(),
		ClinicID: uuid.New(),
		ReportID: uuid.New(),
		Position: 2,
		Data:     "aGVsbG8=",
	}

	raw, err := bson.MarshalWithRegistry(reg, in)
	require.NoError(t, err)

	var doc bson.Raw = raw
	idVal := doc.Lookup("_id")
	subtype, data := idVal.Binary()
	assert.Equal(t, byte(uuidSubtype), subtype)
	assert.Equal(t, in.ID[:], data)

	var out models.ReportImageModel
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.ReportID, out.ReportID)
	assert.Equal(t, 2, out.Position)
}

func TestTranslateMongoError(t *testing.T) {
	assert.True(t, shared.IsNotFound(translateMongoError("find", mongo.ErrNoDocuments)))

	err := translateMongoError("list reports", errors.New("connection reset"))
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.CodeStore, de.Code)
}
