package io

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageReadWrite(t *testing.T) {
	assert := assert.New(t)

	st, err := NewStorage(t.TempDir())
	assert.NoError(err)
	defer st.Shutdown()

	handle, err := st.Create("a.txt")
	assert.NoError(err)
	assert.Equal(STORAGE_FIRST_HANDLE, handle)

	n, err := st.Write(handle, []byte("hello"))
	assert.NoError(err)
	assert.Equal(5, n)
	assert.NoError(st.Close(handle))
	assert.ErrorIs(st.Close(handle), ErrHandleInvalid)

	handle, err = st.Open("a.txt", ACCESS_READ)
	assert.NoError(err)
	assert.Equal(STORAGE_FIRST_HANDLE, handle)

	data := make([]byte, 16)
	n, err = st.Read(handle, data)
	assert.NoError(err)
	assert.Equal("hello", string(data[:n]))

	n, err = st.Read(handle, data)
	assert.NoError(err)
	assert.Equal(0, n)

	_, err = st.Write(handle, []byte("x"))
	assert.Error(err)

	_, err = st.Read(99, data)
	assert.ErrorIs(err, ErrHandleInvalid)
	_, err = st.Write(99, data)
	assert.ErrorIs(err, ErrHandleInvalid)
}

func TestStorageOpenErrors(t *testing.T) {
	assert := assert.New(t)

	st, err := NewStorage(t.TempDir())
	assert.NoError(err)
	defer st.Shutdown()

	_, err = st.Open("missing.txt", ACCESS_READ)
	assert.ErrorIs(err, os.ErrNotExist)

	_, err = st.Open("../escape.txt", ACCESS_READ)
	assert.Error(err)

	_, err = st.Open("missing.txt", 3)
	assert.ErrorIs(err, os.ErrInvalid)

	var none *Storage
	_, err = none.Open("a.txt", ACCESS_READ)
	assert.ErrorIs(err, ErrNoStorage)
	_, err = none.Create("a.txt")
	assert.ErrorIs(err, ErrNoStorage)
}

func TestStorageExhausted(t *testing.T) {
	assert := assert.New(t)

	st, err := NewStorage(t.TempDir())
	assert.NoError(err)

	for want := STORAGE_FIRST_HANDLE; want < STORAGE_MAX_HANDLES; want++ {
		handle, err := st.Create("f.txt")
		assert.NoError(err)
		assert.Equal(want, handle)
	}

	_, err = st.Create("f.txt")
	assert.ErrorIs(err, ErrHandleExhausted)

	// The lowest free handle is reused.
	assert.NoError(st.Close(7))
	handle, err := st.Open("f.txt", ACCESS_READ_WRITE)
	assert.NoError(err)
	assert.Equal(7, handle)

	assert.NoError(st.Shutdown())
	assert.Nil(st.Root)
	_, err = st.Read(7, make([]byte, 1))
	assert.ErrorIs(err, ErrHandleInvalid)
}
