package com

// NetClient is anything connected that can be told to go away.
type NetClient[K comparable] interface {
	Disconnect()
	Id() K
}

// NetMap keeps live network clients by their ids.
type NetMap[K comparable, T NetClient[K]] struct{ Map[K, T] }

func NewNetMap[K comparable, T NetClient[K]]() NetMap[K, T] {
	return NetMap[K, T]{Map: NewMap[K, T]()}
}

func (m *NetMap[K, T]) Add(client T)    { m.Put(client.Id(), client) }
func (m *NetMap[K, T]) Remove(client T) { m.RemoveByKey(client.Id()) }

// DisconnectAll disconnects every client in the map.
// Clients are expected to remove themselves afterwards.
func (m *NetMap[K, T]) DisconnectAll() { m.ForEach(func(c T) { c.Disconnect() }) }
