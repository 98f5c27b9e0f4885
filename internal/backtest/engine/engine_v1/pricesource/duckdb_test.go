package pricesource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantfold/hedgesim/internal/logger"
)

type DuckDBPriceSourceTestSuite struct {
	suite.Suite
	source *DuckDBPriceSource
	logger *logger.Logger
}

func (suite *DuckDBPriceSourceTestSuite) SetupSuite() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = log
}

func (suite *DuckDBPriceSourceTestSuite) SetupTest() {
	source, err := NewDuckDBPriceSource(suite.logger)
	suite.Require().NoError(err)
	suite.source = source
}

func (suite *DuckDBPriceSourceTestSuite) TearDownTest() {
	if suite.source != nil {
		suite.Require().NoError(suite.source.Close())
	}
}

func TestDuckDBPriceSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBPriceSourceTestSuite))
}

func (suite *DuckDBPriceSourceTestSuite) writeBars() string {
	csv := `ticker,date,open,high,low,close,volume
AAPL,2024-01-02,184.0,186.0,183.0,185.5,1000000
AAPL,2024-01-03,185.5,187.0,185.0,186.2,900000
MSFT,2024-01-02,370.0,375.0,369.0,372.1,800000
`
	path := filepath.Join(suite.T().TempDir(), "bars.csv")
	suite.Require().NoError(os.WriteFile(path, []byte(csv), 0644))

	return path
}

func (suite *DuckDBPriceSourceTestSuite) TestGetClose() {
	suite.Require().NoError(suite.source.Initialize(suite.writeBars()))

	price, err := suite.source.GetClose("AAPL", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.Require().True(price.IsSome())
	suite.InDelta(185.5, price.Unwrap(), 1e-9)

	price, err = suite.source.GetClose("MSFT", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.Require().True(price.IsSome())
	suite.InDelta(372.1, price.Unwrap(), 1e-9)
}

func (suite *DuckDBPriceSourceTestSuite) TestMissingBarIsAbsent() {
	suite.Require().NoError(suite.source.Initialize(suite.writeBars()))

	// MSFT has no bar on Jan 3
	price, err := suite.source.GetClose("MSFT", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.True(price.IsNone())
}

func (suite *DuckDBPriceSourceTestSuite) TestUnsupportedFormat() {
	err := suite.source.Initialize("bars.json")
	suite.Error(err)
}

func (suite *DuckDBPriceSourceTestSuite) TestReinitialize() {
	path := suite.writeBars()
	suite.Require().NoError(suite.source.Initialize(path))
	suite.Require().NoError(suite.source.Initialize(path))

	price, err := suite.source.GetClose("AAPL", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.Require().True(price.IsSome())
	suite.InDelta(186.2, price.Unwrap(), 1e-9)
}
