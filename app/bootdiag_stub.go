//go:build !tinygo || !bootdebug

package app

import "ember/hal"

func bootDiagSetStep(string)  {}
func bootDiagStart(_ hal.HAL) {}
