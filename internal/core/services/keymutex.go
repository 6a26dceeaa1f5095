package services

import "sync"

// keyMutex sérialise les opérations portant sur la même clé tout en
// laissant les clés disjointes s'exécuter en parallèle. Les entrées sont
// refcomptées et supprimées dès qu'il n'y a plus de waiter.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyLock)}
}

// Lock bloque jusqu'à détenir la clé et retourne la fonction de libération.
func (k *keyMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
