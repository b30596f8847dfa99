//go:build !linux

package main

func adviseRandom([]byte) {}
