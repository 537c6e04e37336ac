package main

import (
	"bklogistics/config"
	"bklogistics/contract"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("bklogistics")

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Error loading configuration: " + err.Error())
	}
	flogging.ActivateSpec(cfg.LogLevel)

	cc, err := contractapi.NewChaincode(&contract.SupplyChainContract{})
	if err != nil {
		panic("Error creating SupplyChainContract: " + err.Error())
	}
	cc.Info.Title = "bklogistics"
	cc.Info.Version = "1.0.0"

	if !cfg.AsService() {
		if err := cc.Start(); err != nil {
			panic("Error starting chaincode: " + err.Error())
		}
		return
	}

	tlsProps := shim.TLSProperties{Disabled: cfg.TLSDisabled}
	if !cfg.TLSDisabled {
		files, err := cfg.ReadTLSFiles()
		if err != nil {
			panic("Error reading TLS material: " + err.Error())
		}
		tlsProps.Key = files.Key
		tlsProps.Cert = files.Cert
		tlsProps.ClientCACerts = files.ClientCA
	}
	server := &shim.ChaincodeServer{
		CCID:     cfg.CCID,
		Address:  cfg.ServerAddress,
		CC:       cc,
		TLSProps: tlsProps,
	}
	logger.Infof("Starting chaincode service %s on %s", cfg.CCID, cfg.ServerAddress)
	if err := server.Start(); err != nil {
		panic("Error starting chaincode server: " + err.Error())
	}
}
