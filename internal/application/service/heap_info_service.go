package service

import (
	"ACDB/internal/domain"
	"ACDB/internal/platform/repository/heap"
)

type HeapInfoService struct {
	contexts *domain.ContextManager
	heaps    *heap.Manager
}

func NewHeapInfoService(contexts *domain.ContextManager, heaps *heap.Manager) *HeapInfoService {
	return &HeapInfoService{
		contexts: contexts,
		heaps:    heaps,
	}
}

func (s *HeapInfoService) Execute() ([]byte, error) {
	s.contexts.Lock()
	defer s.contexts.Unlock()
	return s.heaps.GetHeapInfo()
}
