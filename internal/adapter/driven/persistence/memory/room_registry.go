package memory

import (
	"hash/fnv"
	"slices"
	"sync"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/samber/lo"
)

// shardCount must stay a power of two.
const shardCount = 32

type memberSet map[domain.UserID]struct{}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]memberSet
}

type nameShard struct {
	mu    sync.RWMutex
	names map[domain.UserID]string
}

// RoomRegistry implements port.RoomRegistry. Rooms and display names are
// striped over independent shards so that unrelated rooms never wait on the
// same lock.
type RoomRegistry struct {
	rooms [shardCount]roomShard
	names [shardCount]nameShard
}

func NewRoomRegistry() *RoomRegistry {
	r := &RoomRegistry{}
	for i := range r.rooms {
		r.rooms[i].rooms = make(map[domain.RoomID]memberSet)
		r.names[i].names = make(map[domain.UserID]string)
	}
	return r
}

func shardOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() & (shardCount - 1))
}

func (r *RoomRegistry) roomShard(roomID domain.RoomID) *roomShard {
	return &r.rooms[shardOf(string(roomID))]
}

func (r *RoomRegistry) nameShard(userID domain.UserID) *nameShard {
	return &r.names[shardOf(string(userID))]
}

func (r *RoomRegistry) Join(roomID domain.RoomID, userID domain.UserID, userName string) {
	rs := r.roomShard(roomID)
	rs.mu.Lock()
	members, ok := rs.rooms[roomID]
	if !ok {
		members = make(memberSet)
		rs.rooms[roomID] = members
	}
	members[userID] = struct{}{}
	rs.mu.Unlock()

	ns := r.nameShard(userID)
	ns.mu.Lock()
	ns.names[userID] = userName
	ns.mu.Unlock()
}

// Leave drops userID from roomID and deletes the room once empty. The display
// name is forgotten even if the user is still in another room.
func (r *RoomRegistry) Leave(roomID domain.RoomID, userID domain.UserID) {
	rs := r.roomShard(roomID)
	rs.mu.Lock()
	if members, ok := rs.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(rs.rooms, roomID)
		}
	}
	rs.mu.Unlock()

	ns := r.nameShard(userID)
	ns.mu.Lock()
	delete(ns.names, userID)
	ns.mu.Unlock()
}

// Members returns a sorted copy of the member set.
func (r *RoomRegistry) Members(roomID domain.RoomID) []domain.UserID {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	ids := lo.Keys(rs.rooms[roomID])
	rs.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (r *RoomRegistry) IsMember(roomID domain.RoomID, userID domain.UserID) bool {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.rooms[roomID][userID]
	return ok
}

func (r *RoomRegistry) Size(roomID domain.RoomID) int {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms[roomID])
}

func (r *RoomRegistry) DisplayName(userID domain.UserID) (string, bool) {
	ns := r.nameShard(userID)
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	name, ok := ns.names[userID]
	return name, ok
}

func (r *RoomRegistry) RoomCount() int {
	n := 0
	for i := range r.rooms {
		rs := &r.rooms[i]
		rs.mu.RLock()
		n += len(rs.rooms)
		rs.mu.RUnlock()
	}
	return n
}
