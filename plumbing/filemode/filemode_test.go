package filemode

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ModeSuite struct {
	suite.Suite
}

func TestModeSuite(t *testing.T) {
	suite.Run(t, new(ModeSuite))
}

func (s *ModeSuite) TestIsMalformed() {
	s.False(Regular.IsMalformed())
	s.False(Executable.IsMalformed())
	s.False(Symlink.IsMalformed())
	s.False(Dir.IsMalformed())
	s.True(FileMode(0o12345).IsMalformed())
}

func (s *ModeSuite) TestString() {
	s.Equal("regular", Regular.String())
	s.Equal("executable", Executable.String())
	s.Equal("symlink", Symlink.String())
	s.Equal("dir", Dir.String())
}
