package mocks

//go:generate mockery --name Store --srcpkg github.com/storelens-lab/storelens/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Connector --srcpkg github.com/storelens-lab/storelens/internal/connector --output ./connector --outpkg connectormocks --with-expecter
