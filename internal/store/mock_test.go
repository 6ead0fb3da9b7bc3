package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver records every query and answers from ResultQueue, then MockResult.
type MockDriver struct {
	Executed    []executedQuery
	MockResult  neo4j.EagerResult
	ResultQueue []neo4j.EagerResult
	Err         error
	PingErr     error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.ResultQueue) > 0 {
		res := m.ResultQueue[0]
		m.ResultQueue = m.ResultQueue[1:]
		return res, nil
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Last() executedQuery {
	return m.Executed[len(m.Executed)-1]
}

func rows(keys []string, values ...[]interface{}) neo4j.EagerResult {
	res := neo4j.EagerResult{Keys: keys}
	for _, v := range values {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: v})
	}
	return res
}
