// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package fork is a generated GoMock package.
package fork

import (
	reflect "reflect"

	journal "github.com/Fantom-foundation/forkvm/go/journal"
	state "github.com/Fantom-foundation/forkvm/go/state"
	gomock "go.uber.org/mock/gomock"
)

// MockProvider is a mock of Provider interface.
type MockProvider struct {
	ctrl     *gomock.Controller
	recorder *MockProviderMockRecorder
}

// MockProviderMockRecorder is the mock recorder for MockProvider.
type MockProviderMockRecorder struct {
	mock *MockProvider
}

// NewMockProvider creates a new mock instance.
func NewMockProvider(ctrl *gomock.Controller) *MockProvider {
	mock := &MockProvider{ctrl: ctrl}
	mock.recorder = &MockProviderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProvider) EXPECT() *MockProviderMockRecorder {
	return m.recorder
}

// CreateFork mocks base method.
func (m *MockProvider) CreateFork(arg0 CreateFork) (ForkID, state.DatabaseRef, journal.Env, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateFork", arg0)
	ret0, _ := ret[0].(ForkID)
	ret1, _ := ret[1].(state.DatabaseRef)
	ret2, _ := ret[2].(journal.Env)
	ret3, _ := ret[3].(error)
	return ret0, ret1, ret2, ret3
}

// CreateFork indicates an expected call of CreateFork.
func (mr *MockProviderMockRecorder) CreateFork(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateFork", reflect.TypeOf((*MockProvider)(nil).CreateFork), arg0)
}

// GetEnv mocks base method.
func (m *MockProvider) GetEnv(arg0 ForkID) (journal.Env, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetEnv", arg0)
	ret0, _ := ret[0].(journal.Env)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// GetEnv indicates an expected call of GetEnv.
func (mr *MockProviderMockRecorder) GetEnv(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetEnv", reflect.TypeOf((*MockProvider)(nil).GetEnv), arg0)
}

// GetForkURL mocks base method.
func (m *MockProvider) GetForkURL(arg0 ForkID) (string, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetForkURL", arg0)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// GetForkURL indicates an expected call of GetForkURL.
func (mr *MockProviderMockRecorder) GetForkURL(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetForkURL", reflect.TypeOf((*MockProvider)(nil).GetForkURL), arg0)
}

// RollFork mocks base method.
func (m *MockProvider) RollFork(id ForkID, block uint64) (ForkID, state.DatabaseRef, journal.Env, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RollFork", id, block)
	ret0, _ := ret[0].(ForkID)
	ret1, _ := ret[1].(state.DatabaseRef)
	ret2, _ := ret[2].(journal.Env)
	ret3, _ := ret[3].(error)
	return ret0, ret1, ret2, ret3
}

// RollFork indicates an expected call of RollFork.
func (mr *MockProviderMockRecorder) RollFork(id, block any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RollFork", reflect.TypeOf((*MockProvider)(nil).RollFork), id, block)
}

// UpdateBlock mocks base method.
func (m *MockProvider) UpdateBlock(id ForkID, number uint64, timestamp uint64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateBlock", id, number, timestamp)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdateBlock indicates an expected call of UpdateBlock.
func (mr *MockProviderMockRecorder) UpdateBlock(id, number, timestamp any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateBlock", reflect.TypeOf((*MockProvider)(nil).UpdateBlock), id, number, timestamp)
}
