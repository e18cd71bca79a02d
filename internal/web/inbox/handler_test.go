package inbox

import (
	"context"
	"net/http"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	inboxmocks "gitee.com/flycash/broadcast-platform/internal/service/inbox/mocks"
	"gitee.com/flycash/broadcast-platform/internal/test"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const jwtKey = "broadcast-platform-key"

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

type HandlerTestSuite struct {
	suite.Suite
	token   string
	orgRepo repository.OrganizationRepository
}

func (s *HandlerTestSuite) SetupSuite() {
	token, err := middleware.NewJwtAuth(jwtKey).Encode(jwt.MapClaims{"org_id": 1})
	s.Require().NoError(err)
	s.token = "Bearer " + token

	db := testioc.InitSQLiteDB()
	s.Require().NoError(dao.InitTables(db))
	c, err := crypto.New("0123456789abcdef0123456789abcdef", "salt")
	s.Require().NoError(err)
	s.orgRepo = repository.NewOrganizationRepository(dao.NewOrganizationDAO(db), c)
	_, err = s.orgRepo.Create(context.Background(), domain.Organization{ID: 1, Name: "acme", APISecret: "top-secret"})
	s.Require().NoError(err)
}

func (s *HandlerTestSuite) newServer(svc *inboxmocks.MockService) *egin.Component {
	econf.Set("server", map[string]any{"contextTimeout": "1s"})
	server := egin.Load("server").Build()
	NewHandler(svc).PrivateRoutes(server.Engine,
		middleware.NewJwtAuth(jwtKey).Tenant(),
		middleware.NewExternalIDBuilder(s.orgRepo).Build())
	return server
}

func (s *HandlerTestSuite) newRequest(method, url, externalID string) *http.Request {
	req, err := http.NewRequest(method, url, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", s.token)
	req.Header.Set(middleware.HeaderExternalID, externalID)
	req.Header.Set(middleware.HeaderExternalIDHmac, crypto.Sign("top-secret", externalID))
	return req
}

func (s *HandlerTestSuite) TestList() {
	t := s.T()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	svc := inboxmocks.NewMockService(ctrl)
	readAt := time.UnixMilli(1700000000000)
	svc.EXPECT().List(gomock.Any(), int64(1), "alice", true, 0, 10).
		Return([]domain.Notification{{ID: 100, Title: "通知", ReadAt: readAt, ArchivedAt: readAt}}, nil)

	recorder := test.NewJSONResponseRecorder[[]Notification]()
	s.newServer(svc).ServeHTTP(recorder, s.newRequest(http.MethodGet, "/inbox/notifications?archived=true", "alice"))
	require.Equal(t, http.StatusOK, recorder.Code)
	res := recorder.MustScan()
	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(100), res.Data[0].ID)
	require.NotNil(t, res.Data[0].ReadAt)
	assert.True(t, readAt.Equal(*res.Data[0].ReadAt))
	assert.Nil(t, res.Data[0].SeenAt)
}

func (s *HandlerTestSuite) TestMark() {
	testCases := []struct {
		name     string
		url      string
		mock     func(svc *inboxmocks.MockService)
		wantCode int
	}{
		{
			name: "标记已读",
			url:  "/inbox/notifications/100/read",
			mock: func(svc *inboxmocks.MockService) {
				svc.EXPECT().Mark(gomock.Any(), int64(1), "alice", int64(100), domain.InboxActionRead).Return(nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "非法操作",
			url:  "/inbox/notifications/100/delete",
			mock: func(svc *inboxmocks.MockService) {
				svc.EXPECT().Mark(gomock.Any(), int64(1), "alice", int64(100), domain.InboxAction("delete")).
					Return(errs.ErrInvalidParameter)
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "不是自己的通知",
			url:  "/inbox/notifications/101/archive",
			mock: func(svc *inboxmocks.MockService) {
				svc.EXPECT().Mark(gomock.Any(), int64(1), "alice", int64(101), domain.InboxActionArchive).
					Return(errs.ErrNotificationNotFound)
			},
			wantCode: http.StatusNotFound,
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			t := s.T()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			svc := inboxmocks.NewMockService(ctrl)
			tc.mock(svc)

			recorder := test.NewJSONResponseRecorder[any]()
			s.newServer(svc).ServeHTTP(recorder, s.newRequest(http.MethodPost, tc.url, "alice"))
			assert.Equal(t, tc.wantCode, recorder.Code)
		})
	}
}

func (s *HandlerTestSuite) TestBadSignature() {
	t := s.T()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	svc := inboxmocks.NewMockService(ctrl)

	req := s.newRequest(http.MethodGet, "/inbox/notifications", "alice")
	req.Header.Set(middleware.HeaderExternalID, "bob")
	recorder := test.NewJSONResponseRecorder[any]()
	s.newServer(svc).ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
