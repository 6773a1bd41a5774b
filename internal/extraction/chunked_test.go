package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/llm/llmtest"
)

const metaReply = `{"reportMetadata":{"reportDate":"2024-05-01","inspector":"רון"},` +
	`"developmentItems":[{"category":"פיתוח","description":"ריצוף לובי","status":"בביצוע"}],` +
	`"progressTracking":[{"apartmentNumber":"1","category":"חשמל","inspectionDate":"01.05.24"}]}`

func apartmentsData(apts ...string) string {
	out := `{"apartmentsData":[`
	for i, a := range apts {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out + `]}`
}

func eightUnitProvider() *llmtest.Scripted {
	return llmtest.New("a").
		On(fullMarker, llmtest.Text(fullJSON(apartmentJSON("1", 1), apartmentJSON("3", 1), apartmentJSON("5", 1)))).
		On(listMarker, llmtest.Text(`{"apartments":["1","3","5","6","7","10","11","14"]}`)).
		On(metaMarker, llmtest.Text(metaReply)).
		On(chunkMarker("1", "3", "5"), llmtest.Text(apartmentsData(apartmentJSON("1", 2), apartmentJSON("3", 2), apartmentJSON("5", 2)))).
		On(chunkMarker("6", "7", "10"), llmtest.Text(apartmentsData(apartmentJSON("6", 2), apartmentJSON("7", 2), apartmentJSON("10", 2)))).
		On(chunkMarker("11", "14"), llmtest.Text(apartmentsData(apartmentJSON("11", 2), apartmentJSON("14", 2))))
}

func TestTruncatedAnswerTriggersChunking(t *testing.T) {
	a := eightUnitProvider()
	o := New(testConfig(), testPrompts, nil, a)

	res, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.True(t, res.Chunked)
	assert.Equal(t, "a", res.Provider)
	require.Len(t, res.Payload.Apartments, 8)

	var numbers []string
	for _, apt := range res.Payload.Apartments {
		numbers = append(numbers, apt.ApartmentNumber)
	}
	assert.Equal(t, []string{"1", "3", "5", "6", "7", "10", "11", "14"}, numbers)
	assert.Equal(t, 17, res.Payload.ItemCount(), "16 apartment items plus 1 site item")
	assert.Equal(t, "2024-05-01", res.Payload.ReportDate)
	assert.Equal(t, "רון", res.Payload.Inspector)
	assert.Len(t, res.Payload.ProgressTracking, 1)
	assert.Contains(t, string(res.Raw), `"apartmentNumber":"14"`)

	// full + list + metadata + 3 batches
	assert.Equal(t, 6, a.CallCount())
}

func TestChunkBatchBlockingFailureAborts(t *testing.T) {
	a := llmtest.New("a").
		On(fullMarker, llmtest.Text(fullJSON(apartmentJSON("1", 1)))).
		On(listMarker, llmtest.Text(`{"apartments":["1","3","5","6"]}`)).
		On(metaMarker, llmtest.Text(metaReply)).
		On(chunkMarker("1", "3", "5"), llmtest.Text(apartmentsData(apartmentJSON("1", 2)))).
		On(chunkMarker("6"), llmtest.Fail(500, "boom"))

	o := New(testConfig(), testPrompts, nil, a)
	_, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocking)
}

func TestChunkUnparsableBatchIsSkipped(t *testing.T) {
	a := llmtest.New("a").
		On(fullMarker, llmtest.Text("sorry, the document is too long to answer")).
		On(listMarker, llmtest.Text(`{"apartments":[1,3,5,6]}`)).
		On(metaMarker, llmtest.Text(metaReply)).
		On(chunkMarker("1", "3", "5"), llmtest.Text("I cannot produce JSON for these apartments")).
		On(chunkMarker("6"), llmtest.Text(apartmentsData(apartmentJSON("6", 4), apartmentJSON("99", 4))))

	o := New(testConfig(), testPrompts, nil, a)
	res, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	require.Len(t, res.Payload.Apartments, 1, "skipped batch stays absent and unrequested 99 is dropped")
	assert.Equal(t, "6", res.Payload.Apartments[0].ApartmentNumber)
	assert.NotEmpty(t, res.Attempts)
}

func TestChunkListUnparsableContinuesWithMetadata(t *testing.T) {
	a := llmtest.New("a").
		On(fullMarker, llmtest.Text(`{"apartments":[]} but nothing else here`)).
		On(listMarker, llmtest.Text("There are no apartment sections.")).
		On(metaMarker, llmtest.Text(metaReply))

	o := New(testConfig(), testPrompts, nil, a)
	res, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, res.Chunked)
	assert.Empty(t, res.Payload.Apartments)
	assert.Equal(t, 1, res.Payload.ItemCount())
	assert.Equal(t, 3, a.CallCount())
}

func TestChunkListBlockingFailureAborts(t *testing.T) {
	a := llmtest.New("a").
		On(fullMarker, llmtest.Text(fullJSON(apartmentJSON("1", 1)))).
		On(listMarker, llmtest.Fail(500, "boom"))

	o := New(testConfig(), testPrompts, nil, a)
	_, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, ErrBlocking)
}

func TestChunkMetadataBlockingFailureAborts(t *testing.T) {
	a := llmtest.New("a").
		On(fullMarker, llmtest.Text(fullJSON(apartmentJSON("1", 1)))).
		On(listMarker, llmtest.Text(`{"apartments":["1"]}`)).
		On(metaMarker, llmtest.Fail(500, "boom"))

	o := New(testConfig(), testPrompts, nil, a)
	_, err := o.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, ErrBlocking)
}

func TestBatches(t *testing.T) {
	assert.Nil(t, batches(nil, 3))
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4"}}, batches([]string{"1", "2", "3", "4"}, 3))
	assert.Equal(t, []string{"1", "3"}, uniqueNumbers([]string{" 1", "3", "1", ""}))
}
