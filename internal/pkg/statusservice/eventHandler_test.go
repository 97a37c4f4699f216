package statusservice

import (
	"fmt"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/api"
	"github.com/airenas/tarimas/internal/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/test"
	"github.com/airenas/tarimas/internal/pkg/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vgarvardt/gue/v5"
)

var (
	dbEHMock       *mocks.JobDB
	handlerEHMMock *mockWSConnHandler
	hndData        *HandlerData
	connMock       *mockWSConn
)

func initHandlerTest(t *testing.T) {
	t.Helper()
	dbEHMock = &mocks.JobDB{}
	handlerEHMMock = &mockWSConnHandler{}
	connMock = &mockWSConn{}
	hndData = &HandlerData{DB: dbEHMock, GueClient: &gue.Client{}, WorkerCount: 10, WSHandler: handlerEHMMock}
	handlerEHMMock.On("GetConnections", mock.Anything).Return([]WsConn{connMock})
	dbEHMock.On("LoadJob", mock.Anything, persistence.KindAssessment, "1").Return(testJob(), nil)
	connMock.On("WriteJSON", mock.Anything).Return(nil)
}

func testMsg() *messages.JobMessage {
	return &messages.JobMessage{QueueMessage: amessages.QueueMessage{ID: "1"}, Kind: persistence.KindAssessment,
		ExternalID: "e1"}
}

func Test_handleStatus(t *testing.T) {
	initHandlerTest(t)
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.Nil(t, err)
	handlerEHMMock.AssertCalled(t, "GetConnections", []string{"1", "a1"})
	require.Equal(t, 1, len(connMock.Calls))
	assert.Equal(t, api.ToJob(testJob()), connMock.Calls[0].Arguments[0])
}

func Test_handleStatus_NoParent(t *testing.T) {
	initHandlerTest(t)
	dbEHMock.ExpectedCalls = nil
	j := testJob()
	j.Kind, j.ParentID = persistence.KindGeneric, ""
	dbEHMock.On("LoadJob", mock.Anything, mock.Anything, mock.Anything).Return(j, nil)
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.Nil(t, err)
	handlerEHMMock.AssertCalled(t, "GetConnections", []string{"1"})
}

func Test_handleStatus_NoConn(t *testing.T) {
	initHandlerTest(t)
	handlerEHMMock.ExpectedCalls = nil
	handlerEHMMock.On("GetConnections", mock.Anything).Return([]WsConn{})
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.Nil(t, err)
	require.Equal(t, 0, len(connMock.Calls))
}

func Test_handleStatus_WriteFails(t *testing.T) {
	initHandlerTest(t)
	connMock.ExpectedCalls = nil
	connMock.On("WriteJSON", mock.Anything).Return(fmt.Errorf("olia"))
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.Nil(t, err)
}

func Test_handleStatus_NoJob(t *testing.T) {
	initHandlerTest(t)
	dbEHMock.ExpectedCalls = nil
	dbEHMock.On("LoadJob", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.Nil(t, err)
	handlerEHMMock.AssertNotCalled(t, "GetConnections", mock.Anything)
}

func Test_handleStatus_Error(t *testing.T) {
	initHandlerTest(t)
	dbEHMock.ExpectedCalls = nil
	dbEHMock.On("LoadJob", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("olia"))
	err := handleStatus(test.Ctx(t), testMsg(), hndData)
	assert.NotNil(t, err)
}

func Test_validateHandler(t *testing.T) {
	initHandlerTest(t)
	type args struct {
		data *HandlerData
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{name: "OK", args: args{data: &HandlerData{DB: dbEHMock, GueClient: &gue.Client{}, WorkerCount: 10, WSHandler: handlerEHMMock}}, wantErr: false},
		{name: "Fail no DB", args: args{data: &HandlerData{GueClient: &gue.Client{}, WorkerCount: 10, WSHandler: handlerEHMMock}}, wantErr: true},
		{name: "Fail no gue", args: args{data: &HandlerData{DB: dbEHMock, WorkerCount: 10, WSHandler: handlerEHMMock}}, wantErr: true},
		{name: "Fail no workers", args: args{data: &HandlerData{DB: dbEHMock, GueClient: &gue.Client{}, WSHandler: handlerEHMMock}}, wantErr: true},
		{name: "Fail no WS", args: args{data: &HandlerData{DB: dbEHMock, GueClient: &gue.Client{}, WorkerCount: 10}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateHandler(tt.args.data); (err != nil) != tt.wantErr {
				t.Errorf("validateHandler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type mockWSConn struct{ mock.Mock }

func (m *mockWSConn) ReadMessage() (messageType int, p []byte, err error) {
	args := m.Called()
	return args.Int(0), args.Get(1).([]byte), args.Error(2)
}

func (m *mockWSConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockWSConn) WriteJSON(v interface{}) error {
	args := m.Called(v)
	return args.Error(0)
}
